package reconcile

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jogardn/xconnect/internal/ledger"
	"github.com/sirupsen/logrus"
)

type Status string

const (
	StatusDelivered Status = "delivered"
	StatusPending   Status = "pending"
	StatusOverdue   Status = "overdue"
)

type Analyzer struct {
	logger *logrus.Logger
	now    func() time.Time
}

type OrderStatus struct {
	OrderName   string        `json:"order_name"`
	Reference   string        `json:"reference,omitempty"`
	Status      Status        `json:"status"`
	DueDate     time.Time     `json:"due_date"`
	SentAt      time.Time     `json:"sent_at"`
	Deliveries  []string      `json:"deliveries"`
	Turnaround  time.Duration `json:"turnaround,omitempty"`
	OverdueBy   time.Duration `json:"overdue_by,omitempty"`
	LastUpdated *time.Time    `json:"last_updated,omitempty"`
}

type Statistics struct {
	TotalOrders       int           `json:"total_orders"`
	TotalDeliveries   int           `json:"total_deliveries"`
	Delivered         int           `json:"delivered"`
	Pending           int           `json:"pending"`
	Overdue           int           `json:"overdue"`
	DeliveryRate      float64       `json:"delivery_rate"`
	AverageTurnaround time.Duration `json:"average_turnaround"`
	OverallStatus     string        `json:"overall_status"`
}

type Report struct {
	Orders    []OrderStatus `json:"orders"`
	Unmatched []string      `json:"unmatched_deliveries"`
	Stats     Statistics    `json:"statistics"`
	Timestamp time.Time     `json:"timestamp"`
}

func NewAnalyzer(logger *logrus.Logger) *Analyzer {
	return &Analyzer{logger: logger, now: time.Now}
}

// WithClock replaces the clock used to decide whether an order is overdue.
func (a *Analyzer) WithClock(now func() time.Time) *Analyzer {
	a.now = now
	return a
}

// Compare matches every order with the deliveries that answer it. A delivery
// answers an order when both carry the same non-empty client reference, or
// when its delivery id is the order name optionally followed by "_" and a
// suffix. An order with no delivery is overdue once its due date has passed.
func (a *Analyzer) Compare(orders []ledger.OrderRecord, deliveries []ledger.DeliveryRecord) *Report {
	now := a.now()
	report := &Report{
		Orders:    make([]OrderStatus, 0, len(orders)),
		Unmatched: []string{},
		Timestamp: now,
	}

	matched := make([]bool, len(deliveries))

	var turnaround time.Duration
	for _, order := range orders {
		status := OrderStatus{
			OrderName:  order.Name,
			Reference:  order.Reference,
			DueDate:    order.DueDate,
			SentAt:     order.SentAt,
			Deliveries: []string{},
		}

		var first *ledger.DeliveryRecord
		for i := range deliveries {
			if !answers(order, deliveries[i]) {
				continue
			}
			matched[i] = true
			status.Deliveries = append(status.Deliveries, deliveries[i].DeliveryID)
			if first == nil || deliveries[i].ReceivedAt.Before(first.ReceivedAt) {
				first = &deliveries[i]
			}
		}

		switch {
		case first != nil:
			status.Status = StatusDelivered
			status.Turnaround = first.ReceivedAt.Sub(order.SentAt)
			received := first.ReceivedAt
			status.LastUpdated = &received
			turnaround += status.Turnaround
			report.Stats.Delivered++
		case now.After(order.DueDate):
			status.Status = StatusOverdue
			status.OverdueBy = now.Sub(order.DueDate)
			report.Stats.Overdue++
		default:
			status.Status = StatusPending
			report.Stats.Pending++
		}
		report.Orders = append(report.Orders, status)
	}

	for i, d := range deliveries {
		if !matched[i] {
			report.Unmatched = append(report.Unmatched, d.DeliveryID)
		}
	}

	slices.SortStableFunc(report.Orders, func(x, y OrderStatus) int {
		return x.SentAt.Compare(y.SentAt)
	})

	report.Stats.TotalOrders = len(orders)
	report.Stats.TotalDeliveries = len(deliveries)
	if len(orders) > 0 {
		report.Stats.DeliveryRate = float64(report.Stats.Delivered) / float64(len(orders)) * 100
	}
	if report.Stats.Delivered > 0 {
		report.Stats.AverageTurnaround = turnaround / time.Duration(report.Stats.Delivered)
	}
	report.Stats.OverallStatus = overallStatus(report.Stats)

	a.logger.WithFields(logrus.Fields{
		"orders":     report.Stats.TotalOrders,
		"deliveries": report.Stats.TotalDeliveries,
		"delivered":  report.Stats.Delivered,
		"pending":    report.Stats.Pending,
		"overdue":    report.Stats.Overdue,
		"unmatched":  len(report.Unmatched),
	}).Info("Reconciliation completed")

	return report
}

func answers(order ledger.OrderRecord, delivery ledger.DeliveryRecord) bool {
	if order.Reference != "" && order.Reference == delivery.Reference {
		return true
	}
	return delivery.DeliveryID == order.Name || strings.HasPrefix(delivery.DeliveryID, order.Name+"_")
}

func overallStatus(stats Statistics) string {
	switch {
	case stats.TotalOrders == 0:
		return "idle"
	case stats.Overdue == 0:
		return "on_track"
	case stats.Overdue*4 < stats.TotalOrders:
		return "delayed"
	default:
		return "critical"
	}
}

func (a *Analyzer) GenerateReport(report *Report, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "json":
		return json.MarshalIndent(report, "", "  ")
	case "summary":
		return generateSummary(report), nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func generateSummary(report *Report) []byte {
	var overdue []string
	for _, o := range report.Orders {
		if o.Status == StatusOverdue {
			overdue = append(overdue, fmt.Sprintf("%s (due %s)", o.OrderName, o.DueDate.Format(time.DateOnly)))
		}
	}
	if len(overdue) == 0 {
		overdue = []string{"none"}
	}

	summary := fmt.Sprintf(`RECONCILIATION REPORT
=====================
Generated: %s

OVERVIEW
--------
Orders: %d
Deliveries: %d
Delivered: %d
Pending: %d
Overdue: %d
Delivery Rate: %.2f%%
Average Turnaround: %s
Unmatched Deliveries: %d

OVERDUE ORDERS
--------------
%s

STATUS: %s
`,
		report.Timestamp.Format(time.RFC3339),
		report.Stats.TotalOrders,
		report.Stats.TotalDeliveries,
		report.Stats.Delivered,
		report.Stats.Pending,
		report.Stats.Overdue,
		report.Stats.DeliveryRate,
		report.Stats.AverageTurnaround,
		len(report.Unmatched),
		strings.Join(overdue, "\n"),
		strings.ToUpper(report.Stats.OverallStatus))

	return []byte(summary)
}
