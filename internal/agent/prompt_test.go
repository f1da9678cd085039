package agent

import (
	"strings"
	"testing"
)

func TestBuildDecisionPromptCarriesToolsCustomerAndQuery(t *testing.T) {
	tools := "- Function Name: get_customer_invoices\n  Description: Recent invoices.\n"
	prompt := BuildDecisionPrompt(tools, "42", "What did I order last week?")

	for _, want := range []string{
		"## Available Tools",
		"get_customer_invoices",
		"Recent invoices.",
		"<function_call>",
		`"name"`,
		`"arguments"`,
		"customer with number: 42",
		"User Query: What did I order last week?",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("expected decision prompt to contain %q\n%s", want, prompt)
		}
	}
	if !strings.HasSuffix(prompt, "User Query: What did I order last week?") {
		t.Fatal("expected the user query to close the prompt")
	}
}

func TestBuildDecisionPromptExampleUsesCustomer(t *testing.T) {
	prompt := BuildDecisionPrompt("", "7", "hi")
	if !strings.Contains(prompt, `"customer_number": "7"`) {
		t.Fatalf("expected example call to carry the customer number\n%s", prompt)
	}
}

func TestBuildResponsePromptWrapsPayload(t *testing.T) {
	payload := `[{"invoice_number":"INV-1","total_amount":12.5}]`
	prompt := BuildResponsePrompt(payload, "Show my invoices")

	want := "<function_response>\n" + payload + "\n</function_response>"
	if !strings.Contains(prompt, want) {
		t.Fatalf("expected payload wrapped verbatim\n%s", prompt)
	}
	if !strings.HasSuffix(prompt, "Original User Query: Show my invoices") {
		t.Fatalf("expected original query at the end\n%s", prompt)
	}
	if strings.Contains(prompt, "## Available Tools") {
		t.Fatal("response prompt must not list tools")
	}
}
