package agent

import (
	"fmt"
	"strings"
)

const assistantPersona = "You are Bake Assist, a friendly and helpful assistant for a bakery business. " +
	"Answer customer questions accurately and concisely. " +
	"You can use tools (functions) to look up information in the bakery's database."

// BuildDecisionPrompt builds the first-turn prompt: it lists the tools, states
// the function-call output contract and carries the verified customer.
func BuildDecisionPrompt(toolDescriptions, customerNumber, userMessage string) string {
	var b strings.Builder
	b.WriteString(assistantPersona)
	b.WriteString("\n\n## Available Tools\n\n")
	b.WriteString(strings.TrimSpace(toolDescriptions))
	b.WriteString("\n\n## Tool Calling Instructions\n\n")
	b.WriteString("1. Read the user's request carefully.\n")
	b.WriteString("2. Use a tool only when the request needs information that one of the tools above provides.\n")
	fmt.Fprintf(&b, "3. To use a tool, output exactly one %s tag containing a JSON object with two keys:\n", functionCallOpen)
	b.WriteString("   - \"name\": the exact name of a tool listed above.\n")
	b.WriteString("   - \"arguments\": an object with the tool's parameters, matching the names and types in its schema.\n")
	b.WriteString("4. Only use the tools listed above. Never invent tool names or arguments.\n")
	fmt.Fprintf(&b, "5. When you use a tool, output ONLY the %s tag and its JSON. Do not add any text before or after it.\n", functionCallOpen)
	b.WriteString("   Example:\n")
	fmt.Fprintf(&b, "   %s{\"name\": \"get_customer_invoices\", \"arguments\": {\"customer_number\": %q, \"limit\": 3}}%s\n",
		functionCallOpen, customerNumber, functionCallClose)
	fmt.Fprintf(&b, "6. If no tool is needed (a greeting, or a question you can answer directly), reply in natural language without the %s tag.\n", functionCallOpen)
	b.WriteString("\n## Function Responses\n\n")
	b.WriteString("After a tool call the system runs the tool and returns its result inside a <function_response> tag. ")
	b.WriteString("Use it to write your final answer. Do not describe the function call process unless something went wrong.\n")
	b.WriteString("\n## Current Context\n\n")
	fmt.Fprintf(&b, "You are assisting the customer with number: %s.\n", customerNumber)
	fmt.Fprintf(&b, "\nUser Query: %s", userMessage)
	return b.String()
}

// BuildResponsePrompt builds the second-turn prompt around a tool's payload.
func BuildResponsePrompt(toolResult, userMessage string) string {
	var b strings.Builder
	b.WriteString(assistantPersona)
	b.WriteString("\n\nThe requested tool has been executed. Its result:\n")
	b.WriteString("<function_response>\n")
	b.WriteString(strings.TrimSpace(toolResult))
	b.WriteString("\n</function_response>\n\n")
	b.WriteString("Using only the result above and the original user query, write a concise, helpful answer in natural language. ")
	b.WriteString("If the result reports an error or that no data was found, tell the user politely. ")
	b.WriteString("Do not mention the function call process.\n")
	fmt.Fprintf(&b, "\nOriginal User Query: %s", userMessage)
	return b.String()
}
