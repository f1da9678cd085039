// Package tasklog 提供基于 SQLite 的对话审计日志。
// 每一轮对话（客户、渠道、消息、所用工具、回复、结果、耗时）
// 都存储在 ~/.bakeassist/tasks.db，与面包店业务数据库分离。
package tasklog

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// 日志中记录的动作类型
const (
	ActionChat   = "chat"
	ActionSystem = "system"
)

// 记录状态
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// TaskRecord 一轮被审计的对话
type TaskRecord struct {
	ID           int64  `json:"id"`
	TurnID       string `json:"turnId"`
	Action       string `json:"action"`
	Channel      string `json:"channel"`
	Customer     string `json:"customer"`
	Message      string `json:"message"`
	Reply        string `json:"reply"`
	Tool         string `json:"tool"`
	ToolStatus   string `json:"toolStatus"`
	Status       string `json:"status"`
	ErrorMessage string `json:"errorMessage"`
	Generations  int    `json:"generations"`
	DurationMs   int64  `json:"durationMs"`
	Model        string `json:"model"`
	CreatedAt    string `json:"createdAt"`
}

// Store 基于 SQLite 的审计日志，可并发使用
type Store struct {
	dbPath string
	db     *sql.DB
	mu     sync.Mutex
}

// DefaultPath 返回 ~/.bakeassist/tasks.db
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".bakeassist", "tasks.db")
	}
	return filepath.Join(home, ".bakeassist", "tasks.db")
}

// NewStore 打开（必要时创建）审计数据库
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create tasklog dir: %w", err)
	}
	s := &Store{dbPath: path}
	if err := s.init(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

const recordColumns = "id, turn_id, action, channel, customer, message, reply, tool, tool_status, status, error_message, generations, duration_ms, model, created_at"

func (s *Store) init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.openDB()
	if err != nil {
		return err
	}

	ddl := `
CREATE TABLE IF NOT EXISTS chat_turns (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  turn_id TEXT NOT NULL DEFAULT '',
  action TEXT NOT NULL DEFAULT 'chat',
  channel TEXT NOT NULL DEFAULT '',
  customer TEXT NOT NULL DEFAULT '',
  message TEXT NOT NULL DEFAULT '',
  reply TEXT NOT NULL DEFAULT '',
  tool TEXT NOT NULL DEFAULT '',
  tool_status TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'success',
  error_message TEXT NOT NULL DEFAULT '',
  generations INTEGER NOT NULL DEFAULT 0,
  duration_ms INTEGER NOT NULL DEFAULT 0,
  model TEXT NOT NULL DEFAULT '',
  created_at TEXT NOT NULL
);`
	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("create chat_turns table: %w", err)
	}

	indices := []string{
		"CREATE INDEX IF NOT EXISTS idx_chat_turns_created ON chat_turns(created_at DESC);",
		"CREATE INDEX IF NOT EXISTS idx_chat_turns_customer ON chat_turns(customer);",
		"CREATE INDEX IF NOT EXISTS idx_chat_turns_turn ON chat_turns(turn_id);",
		"CREATE INDEX IF NOT EXISTS idx_chat_turns_tool ON chat_turns(tool);",
		"CREATE INDEX IF NOT EXISTS idx_chat_turns_status ON chat_turns(status);",
	}
	for _, idx := range indices {
		_, _ = db.Exec(idx)
	}

	// FTS5 全文索引 message/reply/error，供 `tasks list --search` 使用
	_, _ = db.Exec(`CREATE VIRTUAL TABLE IF NOT EXISTS chat_turns_fts USING fts5(
		message, reply, error_message,
		content=chat_turns, content_rowid=id
	);`)
	_, _ = db.Exec(`CREATE TRIGGER IF NOT EXISTS chat_turns_fts_ai AFTER INSERT ON chat_turns BEGIN
		INSERT INTO chat_turns_fts(rowid, message, reply, error_message) VALUES (new.id, new.message, new.reply, new.error_message);
	END;`)
	_, _ = db.Exec(`CREATE TRIGGER IF NOT EXISTS chat_turns_fts_ad AFTER DELETE ON chat_turns BEGIN
		INSERT INTO chat_turns_fts(chat_turns_fts, rowid, message, reply, error_message) VALUES ('delete', old.id, old.message, old.reply, old.error_message);
	END;`)

	return nil
}

func (s *Store) openDB() (*sql.DB, error) {
	if s.db != nil {
		return s.db, nil
	}
	db, err := sql.Open("sqlite", s.dbPath+"?_pragma=busy_timeout%3d5000&_pragma=journal_mode%3dwal")
	if err != nil {
		return nil, fmt.Errorf("open tasklog db: %w", err)
	}
	db.SetMaxOpenConns(1)
	s.db = db
	return db, nil
}

// Log 插入一条记录并回填 ID
func (s *Store) Log(rec *TaskRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.openDB()
	if err != nil {
		return err
	}

	if rec.CreatedAt == "" {
		rec.CreatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if rec.Status == "" {
		rec.Status = StatusSuccess
	}
	if rec.Action == "" {
		rec.Action = ActionChat
	}

	result, err := db.Exec(
		`INSERT INTO chat_turns(turn_id, action, channel, customer, message, reply, tool, tool_status, status, error_message, generations, duration_ms, model, created_at)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rec.TurnID, rec.Action, rec.Channel, rec.Customer, rec.Message, rec.Reply,
		rec.Tool, rec.ToolStatus, rec.Status, rec.ErrorMessage,
		rec.Generations, rec.DurationMs, rec.Model, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert chat turn: %w", err)
	}
	rec.ID, _ = result.LastInsertId()
	return nil
}

// Get 按 ID 获取记录，不存在时返回 nil
func (s *Store) Get(id int64) (*TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.openDB()
	if err != nil {
		return nil, err
	}

	row := db.QueryRow("SELECT "+recordColumns+" FROM chat_turns WHERE id=?", id)
	var r TaskRecord
	if err := scanRecord(row, &r); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

// QueryParams 查询过滤与分页参数
type QueryParams struct {
	Customer string
	Channel  string
	Tool     string
	Status   string
	Search   string // 全文搜索 message、reply 和 error
	Since    string // RFC3339，包含
	Until    string // RFC3339，包含
	SortBy   string // created_at（默认）| duration_ms | generations | tool | status
	SortDesc bool
	Limit    int
	Offset   int
}

// Query 返回一页记录及匹配总数
func (s *Store) Query(p QueryParams) ([]TaskRecord, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.openDB()
	if err != nil {
		return nil, 0, err
	}

	if p.Limit <= 0 {
		p.Limit = 50
	}

	var conditions []string
	var args []any
	for _, f := range []struct{ col, val string }{
		{"customer", p.Customer},
		{"channel", p.Channel},
		{"tool", p.Tool},
		{"status", p.Status},
	} {
		if f.val != "" {
			conditions = append(conditions, f.col+"=?")
			args = append(args, f.val)
		}
	}
	if p.Search != "" {
		conditions = append(conditions, "id IN (SELECT rowid FROM chat_turns_fts WHERE chat_turns_fts MATCH ?)")
		args = append(args, buildFTSQuery(p.Search))
	}
	if p.Since != "" {
		conditions = append(conditions, "created_at>=?")
		args = append(args, p.Since)
	}
	if p.Until != "" {
		conditions = append(conditions, "created_at<=?")
		args = append(args, p.Until)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := db.QueryRow("SELECT COUNT(*) FROM chat_turns"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count chat turns: %w", err)
	}

	sortCol := "created_at"
	allowedSortCols := map[string]bool{
		"created_at": true, "duration_ms": true, "generations": true,
		"tool": true, "status": true,
	}
	if p.SortBy != "" && allowedSortCols[p.SortBy] {
		sortCol = p.SortBy
	}
	sortDir := "DESC"
	if !p.SortDesc && p.SortBy != "" {
		sortDir = "ASC"
	}

	query := "SELECT " + recordColumns + " FROM chat_turns" + where +
		" ORDER BY " + sortCol + " " + sortDir + ", id " + sortDir + " LIMIT ? OFFSET ?"
	args = append(args, p.Limit, p.Offset)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query chat turns: %w", err)
	}
	defer rows.Close()

	var records []TaskRecord
	for rows.Next() {
		var r TaskRecord
		if err := scanRecord(rows, &r); err != nil {
			return nil, 0, fmt.Errorf("scan chat turn: %w", err)
		}
		records = append(records, r)
	}
	return records, total, rows.Err()
}

// Stats 审计日志汇总
type Stats struct {
	TotalRecords   int            `json:"totalRecords"`
	ToolTurns      int            `json:"toolTurns"`
	ByStatus       map[string]int `json:"byStatus"`
	ByTool         map[string]int `json:"byTool"`
	ByChannel      map[string]int `json:"byChannel"`
	AvgDurationMs  float64        `json:"avgDurationMs"`
	EarliestRecord string         `json:"earliestRecord"`
	LatestRecord   string         `json:"latestRecord"`
}

// GetStats 计算聚合统计
func (s *Store) GetStats() (*Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.openDB()
	if err != nil {
		return nil, err
	}

	st := &Stats{
		ByStatus:  make(map[string]int),
		ByTool:    make(map[string]int),
		ByChannel: make(map[string]int),
	}

	_ = db.QueryRow("SELECT COUNT(*) FROM chat_turns").Scan(&st.TotalRecords)
	_ = db.QueryRow("SELECT COUNT(*) FROM chat_turns WHERE tool<>''").Scan(&st.ToolTurns)
	_ = db.QueryRow("SELECT COALESCE(AVG(duration_ms),0) FROM chat_turns WHERE duration_ms>0").Scan(&st.AvgDurationMs)
	_ = db.QueryRow("SELECT COALESCE(MIN(created_at),'') FROM chat_turns").Scan(&st.EarliestRecord)
	_ = db.QueryRow("SELECT COALESCE(MAX(created_at),'') FROM chat_turns").Scan(&st.LatestRecord)

	scanGroupBy(db, "SELECT status, COUNT(*) FROM chat_turns GROUP BY status", st.ByStatus)
	scanGroupBy(db, "SELECT tool, COUNT(*) FROM chat_turns WHERE tool<>'' GROUP BY tool", st.ByTool)
	scanGroupBy(db, "SELECT channel, COUNT(*) FROM chat_turns GROUP BY channel", st.ByChannel)

	return st, nil
}

// Cleanup 删除超过 maxAgeDays 的记录，并最多保留 maxRecords 条最新记录。为 0 时不启用对应规则
func (s *Store) Cleanup(maxAgeDays, maxRecords int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.openDB()
	if err != nil {
		return 0, err
	}

	var totalDeleted int64

	if maxAgeDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -maxAgeDays).UTC().Format(time.RFC3339Nano)
		result, err := db.Exec("DELETE FROM chat_turns WHERE created_at < ?", cutoff)
		if err != nil {
			return totalDeleted, fmt.Errorf("cleanup by age: %w", err)
		}
		n, _ := result.RowsAffected()
		totalDeleted += n
	}

	if maxRecords > 0 {
		result, err := db.Exec(
			"DELETE FROM chat_turns WHERE id NOT IN (SELECT id FROM chat_turns ORDER BY created_at DESC, id DESC LIMIT ?)",
			maxRecords,
		)
		if err != nil {
			return totalDeleted, fmt.Errorf("cleanup by count: %w", err)
		}
		n, _ := result.RowsAffected()
		totalDeleted += n
	}

	if totalDeleted > 0 {
		_, _ = db.Exec("INSERT INTO chat_turns_fts(chat_turns_fts) VALUES('rebuild')")
	}

	return totalDeleted, nil
}

// Count 返回记录总数
func (s *Store) Count() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.openDB()
	if err != nil {
		return 0, err
	}
	var cnt int
	if err := db.QueryRow("SELECT COUNT(*) FROM chat_turns").Scan(&cnt); err != nil {
		return 0, err
	}
	return cnt, nil
}

// Close 关闭数据库
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

// DBPath 返回数据库文件路径
func (s *Store) DBPath() string {
	return s.dbPath
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner, r *TaskRecord) error {
	return row.Scan(&r.ID, &r.TurnID, &r.Action, &r.Channel, &r.Customer,
		&r.Message, &r.Reply, &r.Tool, &r.ToolStatus, &r.Status, &r.ErrorMessage,
		&r.Generations, &r.DurationMs, &r.Model, &r.CreatedAt)
}

func scanGroupBy(db *sql.DB, query string, target map[string]int) {
	rows, err := db.Query(query)
	if err != nil {
		return
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var cnt int
		if err := rows.Scan(&key, &cnt); err == nil {
			target[key] = cnt
		}
	}
}

func buildFTSQuery(input string) string {
	words := strings.Fields(input)
	if len(words) == 0 {
		return `""`
	}
	parts := make([]string, 0, len(words))
	for _, w := range words {
		parts = append(parts, `"`+strings.ReplaceAll(w, `"`, `""`)+`"`)
	}
	return strings.Join(parts, " OR ")
}
