package reconcile

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/jogardn/xconnect/internal/ledger"
	"github.com/jogardn/xconnect/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func order(name, reference string, sent time.Time, dueIn time.Duration) ledger.OrderRecord {
	return ledger.OrderRecord{
		Name:      name,
		Reference: reference,
		SentAt:    sent,
		DueDate:   sent.Add(dueIn),
	}
}

func analyzer() *Analyzer {
	return NewAnalyzer(logging.Discard()).WithClock(func() time.Time { return now })
}

func TestCompare(t *testing.T) {
	day := 24 * time.Hour
	orders := []ledger.OrderRecord{
		order("translation_order_1", "REF-1", now.Add(-5*day), 7*day),
		order("translation_order_2", "", now.Add(-4*day), 7*day),
		order("translation_order_3", "REF-3", now.Add(-9*day), 7*day),
		order("translation_order_4", "REF-4", now.Add(-1*day), 7*day),
	}
	deliveries := []ledger.DeliveryRecord{
		{DeliveryID: "D-100", Reference: "REF-1", ReceivedAt: now.Add(-3 * day)},
		{DeliveryID: "translation_order_2_delivery", ReceivedAt: now.Add(-2 * day)},
		{DeliveryID: "D-999", Reference: "REF-X", ReceivedAt: now.Add(-1 * day)},
	}

	report := analyzer().Compare(orders, deliveries)

	statuses := map[string]Status{}
	for _, o := range report.Orders {
		statuses[o.OrderName] = o.Status
	}
	assert.Equal(t, map[string]Status{
		"translation_order_1": StatusDelivered,
		"translation_order_2": StatusDelivered,
		"translation_order_3": StatusOverdue,
		"translation_order_4": StatusPending,
	}, statuses)

	assert.Equal(t, "translation_order_3", report.Orders[0].OrderName)
	assert.Equal(t, 2*day, report.Orders[0].OverdueBy)
	assert.Equal(t, []string{"D-999"}, report.Unmatched)

	stats := report.Stats
	assert.Equal(t, 4, stats.TotalOrders)
	assert.Equal(t, 3, stats.TotalDeliveries)
	assert.Equal(t, 2, stats.Delivered)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 1, stats.Overdue)
	assert.InDelta(t, 50.0, stats.DeliveryRate, 0.001)
	assert.Equal(t, 2*day, stats.AverageTurnaround)
	assert.Equal(t, "critical", stats.OverallStatus)
}

func TestCompareUsesEarliestDelivery(t *testing.T) {
	sent := now.Add(-48 * time.Hour)
	orders := []ledger.OrderRecord{order("o", "REF", sent, 72*time.Hour)}
	deliveries := []ledger.DeliveryRecord{
		{DeliveryID: "late", Reference: "REF", ReceivedAt: sent.Add(40 * time.Hour)},
		{DeliveryID: "early", Reference: "REF", ReceivedAt: sent.Add(10 * time.Hour)},
	}

	report := analyzer().Compare(orders, deliveries)
	require.Len(t, report.Orders, 1)
	assert.Equal(t, []string{"late", "early"}, report.Orders[0].Deliveries)
	assert.Equal(t, 10*time.Hour, report.Orders[0].Turnaround)
	assert.Empty(t, report.Unmatched)
	assert.Equal(t, "on_track", report.Stats.OverallStatus)
}

func TestCompareEmpty(t *testing.T) {
	report := analyzer().Compare(nil, nil)
	assert.Empty(t, report.Orders)
	assert.Zero(t, report.Stats.DeliveryRate)
	assert.Equal(t, "idle", report.Stats.OverallStatus)
}

func TestGenerateReport(t *testing.T) {
	a := analyzer()
	report := a.Compare([]ledger.OrderRecord{
		order("translation_order_9", "", now.Add(-10*24*time.Hour), 24*time.Hour),
	}, nil)

	t.Run("json", func(t *testing.T) {
		raw, err := a.GenerateReport(report, "json")
		require.NoError(t, err)
		var decoded map[string]any
		require.NoError(t, json.Unmarshal(raw, &decoded))
		assert.Contains(t, decoded, "statistics")
	})

	t.Run("summary", func(t *testing.T) {
		raw, err := a.GenerateReport(report, "SUMMARY")
		require.NoError(t, err)
		text := string(raw)
		assert.True(t, strings.HasPrefix(text, "RECONCILIATION REPORT"))
		assert.Contains(t, text, "translation_order_9 (due ")
		assert.Contains(t, text, "STATUS: CRITICAL")
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := a.GenerateReport(report, "xml")
		assert.Error(t, err)
	})
}
