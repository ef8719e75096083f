package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jogardn/xconnect/pkg/models"
	"github.com/jogardn/xconnect/pkg/response"
)

var ErrNotFound = errors.New("not found")

// OrderRecord is an order as it was sent to the provider.
type OrderRecord struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	ArchiveName     string    `json:"archive_name"`
	SourceLanguage  string    `json:"source_language"`
	TargetLanguages []string  `json:"target_languages"`
	Reference       string    `json:"reference"`
	ClientID        string    `json:"client_id"`
	Files           []string  `json:"files"`
	RequestDate     time.Time `json:"request_date"`
	DueDate         time.Time `json:"due_date"`
	SentAt          time.Time `json:"sent_at"`
}

// DeliveryRecord is a delivery archive fetched from the provider.
type DeliveryRecord struct {
	ID           string     `json:"id"`
	ArchiveName  string     `json:"archive_name"`
	DeliveryID   string     `json:"delivery_id"`
	Reference    string     `json:"reference"`
	Status       string     `json:"status"`
	IssuedBy     string     `json:"issued_by"`
	DeliveryDate time.Time  `json:"delivery_date"`
	FileCount    int        `json:"file_count"`
	OutputDir    string     `json:"output_dir"`
	ReceivedAt   time.Time  `json:"received_at"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
}

// Store keeps track of what was sent and received. Archive names are the
// keys: an order archive and a delivery archive are each recorded once.
type Store interface {
	RecordOrder(ctx context.Context, order *OrderRecord) error
	RecordDelivery(ctx context.Context, delivery *DeliveryRecord) error
	MarkDeliveryProcessed(ctx context.Context, archiveName string, at time.Time) error
	ListOrders(ctx context.Context) ([]OrderRecord, error)
	GetOrder(ctx context.Context, name string) (*OrderRecord, error)
	ListDeliveries(ctx context.Context) ([]DeliveryRecord, error)
	HasDelivery(ctx context.Context, archiveName string) (bool, error)
	Ping(ctx context.Context) error
}

func NewOrderRecord(order *models.Order, archiveName string, sentAt time.Time) *OrderRecord {
	return &OrderRecord{
		Name:            order.Name(),
		ArchiveName:     archiveName,
		SourceLanguage:  order.SourceLanguage(),
		TargetLanguages: order.TargetLanguages(),
		Reference:       order.Reference(),
		ClientID:        order.ClientID(),
		Files:           order.Files(),
		RequestDate:     order.RequestDate(),
		DueDate:         order.DueDate(),
		SentAt:          sentAt,
	}
}

func NewDeliveryRecord(archiveName string, info *response.Info, outputDir string, receivedAt time.Time) *DeliveryRecord {
	return &DeliveryRecord{
		ArchiveName:  archiveName,
		DeliveryID:   info.ID(),
		Reference:    info.Reference(),
		Status:       info.Status(),
		IssuedBy:     info.IssuedBy(),
		DeliveryDate: info.Date(),
		FileCount:    info.FileCount(),
		OutputDir:    outputDir,
		ReceivedAt:   receivedAt,
	}
}
