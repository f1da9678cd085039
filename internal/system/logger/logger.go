// Package logger 提供文件级日志管理，支持按日期和大小轮转、多级别输出和 stderr 双写。
// 日志文件存储在 ~/.bakeassist/logs/ 目录，
// 确保服务无法启动时也可通过原始日志文件排查问题。
package logger

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bakeassist/bakeassist/internal/config"
)

const filePrefix = "bakeassist-"

// Manager 管理日志文件生命周期，按日期和大小轮转
type Manager struct {
	dir      string
	level    slog.Level
	maxAge   int
	maxBytes int64
	stderr   io.Writer
	today    func() string
	mu       sync.Mutex
	file     *os.File
	curDate  string
}

// New 创建日志管理器并打开当天的日志文件
func New(cfg config.LogConfig) (*Manager, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	dir := cfg.Dir
	if dir == "" {
		dir = filepath.Join(config.ConfigDir(), "logs")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	m := &Manager{
		dir:      dir,
		level:    level,
		maxAge:   cfg.MaxAgeDays,
		maxBytes: int64(cfg.MaxSizeMB) * 1024 * 1024,
		today:    func() string { return time.Now().Format("2006-01-02") },
	}
	if cfg.Stderr {
		m.stderr = os.Stderr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.rotateLocked(); err != nil {
		return nil, err
	}
	return m, nil
}

// ParseLevel 将配置中的级别名映射为 slog 级别
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// NewLogger 返回基于文件的 slog.Logger
func (m *Manager) NewLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(m, &slog.HandlerOptions{Level: m.level}))
}

// Write 实现 io.Writer，按日期轮转，可选 stderr 双写
func (m *Manager) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_ = m.rotateLocked()

	var (
		n   int
		err error
	)
	if m.file != nil {
		n, err = m.file.Write(p)
	}
	if m.stderr != nil {
		_, _ = m.stderr.Write(p)
	}
	return n, err
}

// Close 关闭日志文件
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.file == nil {
		return nil
	}
	err := m.file.Close()
	m.file = nil
	return err
}

// Dir 返回日志目录路径
func (m *Manager) Dir() string { return m.dir }

// CurrentFile 返回当前日志文件路径
func (m *Manager) CurrentFile() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.file != nil {
		return m.file.Name()
	}
	return dailyFile(m.dir, m.today(), 0)
}

func (m *Manager) rotateLocked() error {
	today := m.today()
	if m.file != nil && m.curDate == today && !m.oversized(m.file.Name()) {
		return nil
	}
	if m.file != nil {
		_ = m.file.Close()
		m.file = nil
	}

	path := dailyFile(m.dir, today, 0)
	for seq := 1; seq < 100 && m.oversized(path); seq++ {
		path = dailyFile(m.dir, today, seq)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	m.file = f
	m.curDate = today
	return nil
}

func (m *Manager) oversized(path string) bool {
	if m.maxBytes <= 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Size() >= m.maxBytes
}

// Cleanup 清理超过保留天数的日志文件
func (m *Manager) Cleanup() (int, error) {
	if m.maxAge <= 0 {
		return 0, nil
	}
	files, err := ListFiles(m.dir)
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().AddDate(0, 0, -m.maxAge)
	removed := 0
	for _, f := range files {
		if f.ModTime.Before(cutoff) && f.Path != m.CurrentFile() {
			if err := os.Remove(f.Path); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

// FileInfo 描述单个日志文件
type FileInfo struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

// ListFiles 列出所有日志文件，按时间倒序。目录不存在时返回空
func ListFiles(dir string) ([]FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var files []FileInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), filePrefix) || !strings.HasSuffix(entry.Name(), ".log") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Name:    entry.Name(),
			Path:    filepath.Join(dir, entry.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].ModTime.After(files[j].ModTime)
	})
	return files, nil
}

// Tail 读取日志文件最后 n 个非空行，match 非空时只保留包含它的行（不区分大小写）
func Tail(path string, n int, match string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if n <= 0 {
		n = 200
	}
	match = strings.ToLower(match)
	ring := make([]string, 0, n)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if line == "" || (match != "" && !strings.Contains(strings.ToLower(line), match)) {
			continue
		}
		if len(ring) == n {
			ring = append(ring[:0], ring[1:]...)
		}
		ring = append(ring, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return ring, nil
}

// Follow 追踪日志文件新内容并写入 w，直到 ctx 结束
func Follow(ctx context.Context, path string, w io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return err
	}

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	buf := make([]byte, 4096)
	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return err
			}
		}
		if readErr != nil && readErr != io.EOF {
			return readErr
		}
		if readErr == io.EOF {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	}
}

func dailyFile(dir, date string, seq int) string {
	if seq == 0 {
		return filepath.Join(dir, fmt.Sprintf("%s%s.log", filePrefix, date))
	}
	return filepath.Join(dir, fmt.Sprintf("%s%s.%d.log", filePrefix, date, seq))
}
