package report

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stonexiaolei/tuzhan-data/internal/validation"
)

func TestRowLog(t *testing.T) {
	loc := shanghai(t)
	dir := t.TempDir()
	w := NewWriter(dir, loc)

	now := time.Date(2025, 8, 2, 9, 0, 0, 0, loc)
	log, err := w.OpenRowLog(now)
	require.NoError(t, err)

	latest := time.Date(2025, 8, 1, 23, 45, 10, 0, loc)
	ok := validation.Result{
		Key:           validation.Key{Collection: "order_c", ChainID: "1001"},
		Latest:        &latest,
		WindowedCount: 42,
	}
	empty := validation.Result{
		Key: validation.Key{Collection: "order_m", ChainID: "1001"},
	}
	failed := validation.Result{
		Key:     validation.Key{Collection: "order_m", ChainID: "1002"},
		ErrKind: validation.ErrorKindQuery,
		Err:     errors.New("socket timeout"),
	}

	require.NoError(t, log.Append(now, ok))
	require.NoError(t, log.Append(now, empty))
	require.NoError(t, log.Append(now, failed))
	require.NoError(t, log.Close())

	assert.Equal(t, filepath.Join(dir, "mongo_reports", "mongodb_report_20250802.csv"), log.Path())

	f, err := os.Open(log.Path())
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, []string{"timestamp", "collection_name", "chain_id", "record_count", "last_create_time"}, rows[0])
	assert.Equal(t, []string{"2025-08-02 09:00:00", "order_c", "1001", "42", "2025-08-01 23:45:10"}, rows[1])
	assert.Equal(t, []string{"2025-08-02 09:00:00", "order_m", "1001", "0", ""}, rows[2])
	assert.Equal(t, []string{"2025-08-02 09:00:00", "order_m", "1002", "ERROR: socket timeout", "ERROR"}, rows[3])
}

func TestRowLogFlushesPerRow(t *testing.T) {
	loc := shanghai(t)
	w := NewWriter(t.TempDir(), loc)
	now := time.Date(2025, 8, 2, 9, 0, 0, 0, loc)

	log, err := w.OpenRowLog(now)
	require.NoError(t, err)

	require.NoError(t, log.Append(now, validation.Result{
		Key: validation.Key{Collection: "order_c", ChainID: "1001"},
	}))

	// Readable before Close: an aborted run keeps flushed rows
	data, err := os.ReadFile(log.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "order_c")

	require.NoError(t, log.Close())
}

func TestWriteStrictSnapshot(t *testing.T) {
	loc := shanghai(t)
	w := NewWriter(t.TempDir(), loc)
	now := time.Date(2025, 8, 2, 9, 0, 0, 0, loc)

	sv := &StrictValidation{
		ChainID:          "1001",
		ChainName:        "连锁A",
		TodayDate:        "2025-08-02",
		TotalCollections: 2,
		SuccessCount:     1,
		FailedCount:      1,
		ValidatedAt:      now,
	}

	path, err := w.WriteStrictSnapshot(sv, now)
	require.NoError(t, err)
	assert.Equal(t, "special_validation_20250802.json", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded StrictValidation
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "连锁A", decoded.ChainName)
	assert.Equal(t, 1, decoded.FailedCount)
}

func TestWriteValidationSnapshot(t *testing.T) {
	loc := shanghai(t)
	w := NewWriter(t.TempDir(), loc)
	now := time.Date(2025, 8, 2, 9, 0, 0, 0, loc)

	results := []validation.Result{
		{Key: validation.Key{Collection: "order_c", ChainID: "1001"}, TodayCount: 12, Success: true},
	}

	path, err := w.WriteValidationSnapshot(results, now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("validation_reports", "today_validation_20250802.json"), filepath.Join(filepath.Base(filepath.Dir(path)), filepath.Base(path)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"today_count": 12`)
}

func TestSummaryRender(t *testing.T) {
	s := Summary{
		Date:        "2025-08-02",
		Elapsed:     3*time.Minute + 25*time.Second,
		Database:    "tuzhan",
		Collections: 12,
		Chains:      8,
		Processed:   96,
		OutputPath:  "/data/mongo_reports/mongodb_report_20250802.csv",
	}

	out := s.Render()
	assert.Contains(t, out, "MongoDB 日报摘要")
	assert.Contains(t, out, "报告日期:      2025-08-02")
	assert.Contains(t, out, "执行时间:      00:03:25")
	assert.Contains(t, out, "处理记录数:    96")
}

func TestFormatElapsed(t *testing.T) {
	assert.Equal(t, "00:00:01", FormatElapsed(time.Second))
	assert.Equal(t, "01:02:03", FormatElapsed(time.Hour+2*time.Minute+3*time.Second))
	assert.Equal(t, "25:00:00", FormatElapsed(25*time.Hour))
}

func TestWriteSummary(t *testing.T) {
	loc := shanghai(t)
	dir := t.TempDir()
	w := NewWriter(dir, loc)
	now := time.Date(2025, 8, 2, 9, 0, 0, 0, loc)

	path, err := w.WriteSummary(Summary{Date: "2025-08-02"}, now)
	require.NoError(t, err)
	assert.Equal(t, "report_summary_20250802.txt", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "报告日期:      2025-08-02")
}
