// Package audit is the daemon's append-only decision record. Every entry
// is redacted before it is stored or returned: approval codes are 8-digit
// runs, so any standalone 8-digit run in any string field is replaced
// wholesale rather than risking one leaking through a reason message.
package audit

import (
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// memoryWindow bounds the in-memory tail served by Recent; the database
// file keeps the full history beyond it.
const memoryWindow = 1000

var eightDigitRun = regexp.MustCompile(`\b\d{8}\b`)

// Redact replaces any standalone 8-digit run with [REDACTED].
func Redact(s string) string {
	return eightDigitRun.ReplaceAllString(s, "[REDACTED]")
}

// ShortenAddress reduces an address longer than 12 characters to its first
// 8 characters (0x plus six hex digits) and last 4 for display, keeping full addresses out of the audit trail.
func ShortenAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:8] + "…" + addr[len(addr)-4:]
}

// Entry is one audit record.
type Entry struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Timestamp time.Time `json:"timestamp" gorm:"index"`
	Action    string    `json:"action"`
	Target    string    `json:"target"`
	Value     string    `json:"value"`
	Decision  string    `json:"decision" gorm:"index"`
	Reason    string    `json:"reason"`
	TxHash    string    `json:"txHash,omitempty" gorm:"index"`
}

// TableName specifies the table name for Entry
func (Entry) TableName() string {
	return "audit_entries"
}

// Log is the append-only audit sink. Writes go to the database and to a
// bounded in-memory ring; reads come from the ring only, so serving
// /audit-log never touches disk.
type Log struct {
	mu     sync.Mutex
	db     *gorm.DB
	recent []Entry
	now    func() time.Time
}

// Open creates (or reopens) the audit database at path.
func Open(path string) (*Log, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate audit schema: %w", err)
	}

	l := &Log{db: db, now: time.Now}

	// Warm the in-memory window with the newest persisted entries so a
	// restart doesn't present an empty /audit-log.
	var tail []Entry
	if err := db.Order("timestamp desc").Limit(memoryWindow).Find(&tail).Error; err == nil {
		for i := len(tail) - 1; i >= 0; i-- {
			l.recent = append(l.recent, tail[i])
		}
	}
	return l, nil
}

// Record appends one entry, redacting every string field on the way in.
// Persistence failures are reported but the in-memory record still lands,
// so a full disk never silently drops the trail mid-process.
func (l *Log) Record(action, target, value, decision, reason, txHash string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := Entry{
		ID:        uuid.New().String(),
		Timestamp: l.now(),
		Action:    Redact(action),
		Target:    Redact(ShortenAddress(target)),
		Value:     Redact(value),
		Decision:  Redact(decision),
		Reason:    Redact(reason),
		TxHash:    Redact(txHash),
	}

	l.recent = append(l.recent, e)
	if len(l.recent) > memoryWindow {
		l.recent = l.recent[len(l.recent)-memoryWindow:]
	}

	if l.db != nil {
		if err := l.db.Create(&e).Error; err != nil {
			return fmt.Errorf("failed to persist audit entry: %w", err)
		}
	}
	return nil
}

// Recent returns the in-memory window, newest last.
func (l *Log) Recent() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.recent))
	copy(out, l.recent)
	return out
}
