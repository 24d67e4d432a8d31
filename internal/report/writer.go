package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/stonexiaolei/tuzhan-data/internal/validation"
)

const (
	reportsSubdir    = "mongo_reports"
	validationSubdir = "validation_reports"

	fileDateLayout = "20060102"
	rowTimeLayout  = "2006-01-02 15:04:05"
)

// Writer produces the run's on-disk artifacts: the append-only row log, the
// JSON snapshots, and the human-readable summary block
type Writer struct {
	baseDir string
	loc     *time.Location
}

// NewWriter creates a Writer rooted at baseDir
func NewWriter(baseDir string, loc *time.Location) *Writer {
	return &Writer{baseDir: baseDir, loc: loc}
}

// RowLog is the append-only CSV log, one row per evaluation in strict
// evaluation order. Every row is flushed as it is written so an aborted run
// keeps everything evaluated before the failure.
type RowLog struct {
	f    *os.File
	w    *csv.Writer
	path string
	loc  *time.Location
}

// OpenRowLog creates the dated CSV file and writes its header
func (w *Writer) OpenRowLog(now time.Time) (*RowLog, error) {
	dir := filepath.Join(w.baseDir, reportsSubdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("mongodb_report_%s.csv", now.In(w.loc).Format(fileDateLayout)))
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create row log: %w", err)
	}

	cw := csv.NewWriter(f)
	if err := cw.Write([]string{"timestamp", "collection_name", "chain_id", "record_count", "last_create_time"}); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write row log header: %w", err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("flush row log header: %w", err)
	}

	return &RowLog{f: f, w: cw, path: path, loc: w.loc}, nil
}

// Append writes one evaluation row. Error evaluations substitute error
// markers for the count and time fields.
func (l *RowLog) Append(runTime time.Time, res validation.Result) error {
	countField := strconv.FormatInt(res.WindowedCount, 10)
	timeField := ""

	if res.Failed() {
		countField = "ERROR: " + res.ErrorMessage()
		timeField = "ERROR"
	} else if res.Latest != nil {
		timeField = res.Latest.In(l.loc).Format(rowTimeLayout)
	}

	row := []string{
		runTime.In(l.loc).Format(rowTimeLayout),
		res.Key.Collection,
		res.Key.ChainID,
		countField,
		timeField,
	}

	if err := l.w.Write(row); err != nil {
		return fmt.Errorf("append row: %w", err)
	}

	// Flush per row; partial runs keep what was already evaluated
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		return fmt.Errorf("flush row: %w", err)
	}
	return nil
}

// Path returns the row log's file path
func (l *RowLog) Path() string {
	return l.path
}

// Close flushes any buffered rows and closes the file
func (l *RowLog) Close() error {
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		_ = l.f.Close()
		return fmt.Errorf("flush row log: %w", err)
	}
	return l.f.Close()
}

// WriteStrictSnapshot archives the strict validation result as JSON
func (w *Writer) WriteStrictSnapshot(sv *StrictValidation, now time.Time) (string, error) {
	name := fmt.Sprintf("special_validation_%s.json", now.In(w.loc).Format(fileDateLayout))
	return w.writeJSON(reportsSubdir, name, sv)
}

// WriteReportSnapshot archives the full report as JSON
func (w *Writer) WriteReportSnapshot(rep *Report, now time.Time) (string, error) {
	name := fmt.Sprintf("report_snapshot_%s.json", now.In(w.loc).Format(fileDateLayout))
	return w.writeJSON(reportsSubdir, name, rep)
}

// WriteValidationSnapshot archives a today-validation run as JSON
func (w *Writer) WriteValidationSnapshot(results []validation.Result, now time.Time) (string, error) {
	name := fmt.Sprintf("today_validation_%s.json", now.In(w.loc).Format(fileDateLayout))
	return w.writeJSON(validationSubdir, name, results)
}

func (w *Writer) writeJSON(subdir, name string, v interface{}) (string, error) {
	dir := filepath.Join(w.baseDir, subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s directory: %w", subdir, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", name, err)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return path, nil
}

// Summary is the run's human-readable closing block
type Summary struct {
	Date        string
	Elapsed     time.Duration
	Database    string
	Collections int
	Chains      int
	Processed   int
	OutputPath  string
}

// Render formats the summary banner
func (s Summary) Render() string {
	var b strings.Builder
	line := strings.Repeat("=", 48)

	fmt.Fprintf(&b, "\n%s\n", line)
	b.WriteString("MongoDB 日报摘要\n")
	fmt.Fprintf(&b, "%s\n", line)
	fmt.Fprintf(&b, "报告日期:      %s\n", s.Date)
	fmt.Fprintf(&b, "执行时间:      %s\n", FormatElapsed(s.Elapsed))
	fmt.Fprintf(&b, "数据库:        %s\n", s.Database)
	fmt.Fprintf(&b, "集合数量:      %d\n", s.Collections)
	fmt.Fprintf(&b, "链ID数量:      %d\n", s.Chains)
	fmt.Fprintf(&b, "处理记录数:    %d\n", s.Processed)
	fmt.Fprintf(&b, "输出文件:      %s\n", s.OutputPath)
	fmt.Fprintf(&b, "%s\n", line)

	return b.String()
}

// WriteSummary saves the summary banner next to the row log
func (w *Writer) WriteSummary(s Summary, now time.Time) (string, error) {
	dir := filepath.Join(w.baseDir, reportsSubdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("report_summary_%s.txt", now.In(w.loc).Format(fileDateLayout)))
	if err := os.WriteFile(path, []byte(s.Render()), 0o644); err != nil {
		return "", fmt.Errorf("write summary: %w", err)
	}
	return path, nil
}

// FormatElapsed renders a duration as HH:MM:SS
func FormatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
