package runner

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stonexiaolei/tuzhan-data/internal/notify"
	"github.com/stonexiaolei/tuzhan-data/internal/validation"
	"github.com/stonexiaolei/tuzhan-data/pkg/config"
	"github.com/stonexiaolei/tuzhan-data/pkg/logger"
)

// pairStore answers queries from a fixed (collection, chain) -> state table
type pairStore struct {
	latest map[validation.Key]time.Time
	today  map[validation.Key]int64
	total  map[validation.Key]int64
}

func (s *pairStore) FindLatest(_ context.Context, collection string, chainID int64) (*validation.Record, error) {
	key := validation.Key{Collection: collection, ChainID: chainIDString(chainID)}
	ts, ok := s.latest[key]
	if !ok {
		return nil, nil
	}
	return &validation.Record{CreateTime: ts}, nil
}

func (s *pairStore) CountMatching(_ context.Context, collection string, filter validation.Filter) (int64, error) {
	key := validation.Key{Collection: collection, ChainID: chainIDString(filter.ChainID)}
	switch {
	case filter.After != nil:
		return 5, nil
	case filter.From != nil:
		return s.today[key], nil
	default:
		return s.total[key], nil
	}
}

func chainIDString(id int64) string {
	switch id {
	case 1001:
		return "1001"
	case 1002:
		return "1002"
	default:
		return "?"
	}
}

// captureNotifier records every delivered message
type captureNotifier struct {
	enabled bool
	sent    []notify.Message
}

func (n *captureNotifier) Enabled() bool { return n.enabled }

func (n *captureNotifier) Send(_ context.Context, msg notify.Message) error {
	n.sent = append(n.sent, msg)
	return nil
}

func testConfig(t *testing.T, dir string) *config.Config {
	t.Helper()
	return &config.Config{
		Env: "development",
		Mongo: config.MongoConfig{
			Database: "tuzhan",
		},
		Audit: config.AuditConfig{
			Collections:     []string{"orders"},
			ChainIDs:        []string{"1001"},
			StrictChainID:   "1001",
			ChainNames:      map[string]string{"1001": "连锁A"},
			CollectionNames: map[string]string{"orders": "订单"},
			Timezone:        "Asia/Shanghai",
			OutputDir:       dir,
		},
		WeChat: config.WeChatConfig{
			Webhook:     "https://example.invalid/webhook",
			MinInterval: time.Millisecond,
		},
		LogLevel:  "debug",
		LogFormat: "json",
	}
}

// End-to-end case: now = 2025-08-02T09:00 CST, latest record at
// 2025-08-01T23:45:10 CST, no records today -> strict validation fails with
// no-today-data, general policy sees a fresh overnight landing.
func TestRunReportEndToEnd(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Shanghai")
	require.NoError(t, err)

	now := time.Date(2025, 8, 2, 9, 0, 0, 0, loc)
	latest := time.Date(2025, 8, 1, 23, 45, 10, 0, loc)
	key := validation.Key{Collection: "orders", ChainID: "1001"}

	store := &pairStore{
		latest: map[validation.Key]time.Time{key: latest.UTC()},
		today:  map[validation.Key]int64{key: 0},
		total:  map[validation.Key]int64{key: 500},
	}

	dir := t.TempDir()
	cfg := testConfig(t, dir)
	notifier := &captureNotifier{enabled: true}
	log := logger.NewWithWriter(io.Discard)

	r := New(cfg, store, notifier, log).WithNow(func() time.Time { return now })

	outcome, err := r.RunReport(context.Background())
	require.NoError(t, err)

	rep := outcome.Report
	require.Len(t, rep.Chains, 1)

	// General policy: yesterday's landing is on time
	chain := rep.Chains[0]
	assert.True(t, chain.Success)
	assert.Empty(t, chain.Anomalies)
	assert.EqualValues(t, 5, chain.TotalRecords)

	// Strict contract: latest is not today and the today window is empty
	require.NotNil(t, rep.Strict)
	assert.False(t, rep.Strict.Success)
	require.Len(t, rep.Strict.Results, 1)
	strictRes := rep.Strict.Results[0]
	assert.False(t, strictRes.IsToday)
	assert.False(t, strictRes.Success)
	assert.Zero(t, strictRes.TodayCount)

	// One message per chain plus the strict report
	require.Len(t, notifier.sent, 2)
	assert.Contains(t, notifier.sent[0].Markdown.Content, "连锁A")
	assert.Contains(t, notifier.sent[1].Markdown.Content, "无当天数据")

	// Artifacts land under the output directory
	assert.FileExists(t, filepath.Join(dir, "mongo_reports", "mongodb_report_20250802.csv"))
	assert.FileExists(t, filepath.Join(dir, "mongo_reports", "report_summary_20250802.txt"))
	assert.FileExists(t, filepath.Join(dir, "mongo_reports", "special_validation_20250802.json"))
	assert.FileExists(t, filepath.Join(dir, "mongo_reports", "report_snapshot_20250802.json"))

	assert.Equal(t, "2025-08-02", outcome.Summary.Date)
	assert.Equal(t, 1, outcome.Summary.Processed)
}

func TestRunReportRowOrder(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Shanghai")
	require.NoError(t, err)
	now := time.Date(2025, 8, 2, 9, 0, 0, 0, loc)

	dir := t.TempDir()
	cfg := testConfig(t, dir)
	cfg.Audit.Collections = []string{"orders", "members"}
	cfg.Audit.ChainIDs = []string{"1001", "1002"}
	cfg.Audit.StrictChainID = ""
	cfg.WeChat.Webhook = ""

	store := &pairStore{}
	log := logger.NewWithWriter(io.Discard)
	r := New(cfg, store, &captureNotifier{}, log).WithNow(func() time.Time { return now })

	_, err = r.RunReport(context.Background())
	require.NoError(t, err)

	f, err := os.Open(filepath.Join(dir, "mongo_reports", "mongodb_report_20250802.csv"))
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 5)

	// Collection-major, chains within, exactly as configured
	assert.Equal(t, []string{"orders", "1001"}, rows[1][1:3])
	assert.Equal(t, []string{"orders", "1002"}, rows[2][1:3])
	assert.Equal(t, []string{"members", "1001"}, rows[3][1:3])
	assert.Equal(t, []string{"members", "1002"}, rows[4][1:3])
}

func TestRunTodayValidation(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Shanghai")
	require.NoError(t, err)
	now := time.Date(2025, 8, 2, 9, 0, 0, 0, loc)

	fresh := time.Date(2025, 8, 2, 8, 30, 0, 0, loc)
	stale := time.Date(2025, 8, 1, 23, 45, 10, 0, loc)

	freshKey := validation.Key{Collection: "orders", ChainID: "1001"}
	staleKey := validation.Key{Collection: "orders", ChainID: "1002"}

	store := &pairStore{
		latest: map[validation.Key]time.Time{
			freshKey: fresh.UTC(),
			staleKey: stale.UTC(),
		},
		today: map[validation.Key]int64{freshKey: 120, staleKey: 0},
		total: map[validation.Key]int64{freshKey: 900, staleKey: 800},
	}

	dir := t.TempDir()
	cfg := testConfig(t, dir)
	cfg.Audit.ChainIDs = []string{"1001", "1002"}
	notifier := &captureNotifier{enabled: true}
	log := logger.NewWithWriter(io.Discard)

	r := New(cfg, store, notifier, log).WithNow(func() time.Time { return now })

	outcome, err := r.RunTodayValidation(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.Succeeded)
	assert.Equal(t, 1, outcome.Failed)
	assert.False(t, outcome.OK())

	require.Len(t, notifier.sent, 1)
	content := notifier.sent[0].Markdown.Content
	assert.Contains(t, content, "存在异常")
	assert.Contains(t, content, "连锁ID:1002")

	assert.FileExists(t, filepath.Join(dir, "validation_reports", "today_validation_20250802.json"))
}
