package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jogardn/xconnect/internal/events"
	"github.com/jogardn/xconnect/internal/ledger"
	"github.com/jogardn/xconnect/internal/websocket"
	"github.com/jogardn/xconnect/pkg/models"
	"github.com/jogardn/xconnect/pkg/request"
	"github.com/jogardn/xconnect/pkg/response"
	"github.com/jogardn/xconnect/pkg/transport"
	"github.com/sirupsen/logrus"
)

const source = "agent"

type Broadcaster interface {
	Broadcast(messageType string, data any, source string)
}

type Options struct {
	// WorkDir holds archives while they are built or downloaded. Empty
	// means the system temp directory.
	WorkDir string
	// OutputDir receives one folder per delivery.
	OutputDir string
	// DeleteAfterReceive removes handled deliveries from the provider
	// instead of moving them to the processed directory.
	DeleteAfterReceive bool
	// DryRun builds and reads archives but leaves the provider, the
	// ledger and the event bus untouched.
	DryRun        bool
	PollInterval  time.Duration
	OrderDefaults models.OrderConfig
	Now           func() time.Time
}

// Dispatcher sends orders to the provider and collects deliveries. Send and
// Poll are serialized: the transport is used by one call at a time.
type Dispatcher struct {
	service   transport.Service
	store     ledger.Store
	publisher events.Publisher
	hub       Broadcaster
	opts      Options
	logger    *logrus.Logger

	mutex sync.Mutex
}

func New(service transport.Service, store ledger.Store, publisher events.Publisher, hub Broadcaster, opts Options, logger *logrus.Logger) *Dispatcher {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Minute
	}
	return &Dispatcher{
		service:   service,
		store:     store,
		publisher: publisher,
		hub:       hub,
		opts:      opts,
		logger:    logger,
	}
}

// NewRequest starts a request with the configured order defaults.
func (d *Dispatcher) NewRequest(sourceLanguage string) (*request.Request, error) {
	return request.New(sourceLanguage, d.opts.OrderDefaults, models.WithClock(d.opts.Now))
}

func (d *Dispatcher) Send(ctx context.Context, req *request.Request) (*SendResult, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	order := req.Order()
	logger := d.logger.WithField("order_name", order.Name())

	workDir, err := os.MkdirTemp(d.opts.WorkDir, "xconnect-send-")
	if err != nil {
		return nil, fmt.Errorf("create work directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	archive, err := request.BuildArchive(req, workDir)
	if err != nil {
		return nil, err
	}
	defer archive.Close()

	result := &SendResult{
		OrderName:   order.Name(),
		ArchiveName: archive.FileName(),
		FileCount:   len(order.Files()),
		DryRun:      d.opts.DryRun,
	}

	if d.opts.DryRun {
		logger.WithField("archive", archive.FileName()).Info("DRY RUN: Would send order")
		return result, nil
	}

	if err := d.service.Send(ctx, archive); err != nil {
		logger.WithError(err).Error("Failed to send order")
		return nil, fmt.Errorf("send order %s: %w", order.Name(), err)
	}
	result.SentAt = d.opts.Now()

	if err := d.store.RecordOrder(ctx, ledger.NewOrderRecord(order, archive.FileName(), result.SentAt)); err != nil {
		logger.WithError(err).Error("Order sent but not recorded")
		result.Warning = "order sent but not recorded in the ledger"
		return result, fmt.Errorf("record order %s: %w", order.Name(), err)
	}

	event := events.OrderSentEvent{
		OrderName:       order.Name(),
		ArchiveName:     archive.FileName(),
		SourceLanguage:  order.SourceLanguage(),
		TargetLanguages: order.TargetLanguages(),
		Reference:       order.Reference(),
		FileCount:       result.FileCount,
		DueDate:         order.DueDate(),
		EventTime:       result.SentAt,
	}
	if err := d.publisher.PublishOrderSent(ctx, event); err != nil {
		logger.WithError(err).Error("Failed to publish order sent event")
	}
	d.broadcast(websocket.TypeOrderSent, result)

	logger.WithFields(logrus.Fields{
		"archive":          archive.FileName(),
		"target_languages": order.TargetLanguages(),
		"file_count":       result.FileCount,
	}).Info("Order sent")

	return result, nil
}

// Poll fetches every delivery waiting at the provider. A delivery that fails
// is reported in the result and left on the provider for the next poll.
func (d *Dispatcher) Poll(ctx context.Context) (*PollResult, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	start := d.opts.Now()
	result := &PollResult{
		Deliveries: []DeliveryEntry{},
		Errors:     []PollError{},
		DryRun:     d.opts.DryRun,
		Timestamp:  start,
	}

	names, err := d.service.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan deliveries: %w", err)
	}
	result.Scanned = len(names)

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if !strings.EqualFold(filepath.Ext(name), ".zip") {
			result.Skipped++
			continue
		}
		seen, err := d.store.HasDelivery(ctx, name)
		if err != nil {
			return result, fmt.Errorf("check ledger for %s: %w", name, err)
		}
		if seen {
			d.logger.WithField("archive", name).Debug("Delivery already recorded, skipping")
			result.Skipped++
			continue
		}

		entry, err := d.receive(ctx, name)
		if err != nil {
			d.logger.WithError(err).WithField("archive", name).Error("Failed to receive delivery")
			result.Failed++
			result.Errors = append(result.Errors, PollError{
				ArchiveName: name,
				Error:       err.Error(),
				Timestamp:   d.opts.Now(),
			})
			continue
		}
		result.Received++
		result.Deliveries = append(result.Deliveries, *entry)
	}

	result.ProcessingTime = d.opts.Now().Sub(start)
	d.broadcast(websocket.TypePollCompleted, result)

	d.logger.WithFields(logrus.Fields{
		"scanned":  result.Scanned,
		"received": result.Received,
		"skipped":  result.Skipped,
		"failed":   result.Failed,
		"dry_run":  result.DryRun,
	}).Info("Poll completed")

	return result, nil
}

func (d *Dispatcher) receive(ctx context.Context, name string) (*DeliveryEntry, error) {
	workDir, err := os.MkdirTemp(d.opts.WorkDir, "xconnect-receive-")
	if err != nil {
		return nil, fmt.Errorf("create work directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	local, err := d.service.Receive(ctx, name, workDir)
	if err != nil {
		return nil, err
	}

	resp, err := response.Open(local)
	if err != nil {
		return nil, err
	}
	defer resp.Close()

	info, err := resp.Info()
	if err != nil {
		return nil, err
	}

	deliveryID := info.ID()
	if deliveryID == "" {
		deliveryID = strings.TrimSuffix(name, filepath.Ext(name))
	}
	if !filepath.IsLocal(deliveryID) {
		return nil, fmt.Errorf("delivery id %q is not a valid directory name", deliveryID)
	}
	outputDir := filepath.Join(d.opts.OutputDir, deliveryID)

	files, err := d.extract(resp, outputDir)
	if err != nil {
		return nil, err
	}

	entry := &DeliveryEntry{
		ArchiveName: name,
		DeliveryID:  deliveryID,
		Reference:   info.Reference(),
		OutputDir:   outputDir,
		Files:       files,
	}
	if d.opts.DryRun {
		d.logger.WithField("archive", name).Info("DRY RUN: Would record and acknowledge delivery")
		return entry, nil
	}

	now := d.opts.Now()
	if err := d.store.RecordDelivery(ctx, ledger.NewDeliveryRecord(name, info, outputDir, now)); err != nil {
		return nil, fmt.Errorf("record delivery: %w", err)
	}

	if d.opts.DeleteAfterReceive {
		err = d.service.Delete(ctx, name)
	} else {
		err = d.service.Processed(ctx, name)
	}
	if err != nil {
		// The ledger skips it next time; the remote copy is left for an
		// operator.
		d.logger.WithError(err).WithField("archive", name).Warn("Delivery recorded but not acknowledged on the provider")
	} else if err := d.store.MarkDeliveryProcessed(ctx, name, now); err != nil && !errors.Is(err, ledger.ErrNotFound) {
		d.logger.WithError(err).WithField("archive", name).Warn("Failed to mark delivery processed")
	}

	event := events.DeliveryReceivedEvent{
		DeliveryID:  deliveryID,
		ArchiveName: name,
		Reference:   info.Reference(),
		Status:      info.Status(),
		FileCount:   len(files),
		OutputDir:   outputDir,
		EventTime:   now,
	}
	if err := d.publisher.PublishDeliveryReceived(ctx, event); err != nil {
		d.logger.WithError(err).Error("Failed to publish delivery received event")
	}
	d.broadcast(websocket.TypeDeliveryReceived, entry)

	d.logger.WithFields(logrus.Fields{
		"archive":     name,
		"delivery_id": deliveryID,
		"reference":   info.Reference(),
		"file_count":  len(files),
	}).Info("Delivery received")

	return entry, nil
}

// extract writes every translation below dir at its manifest path.
func (d *Dispatcher) extract(resp *response.Response, dir string) ([]string, error) {
	translations, err := resp.Translations()
	if err != nil {
		return nil, err
	}

	var written []string
	for _, tr := range translations.All() {
		rel := filepath.FromSlash(tr.Info().Path)
		if !filepath.IsLocal(rel) {
			return nil, fmt.Errorf("file reference %q leaves the delivery directory", tr.Info().Path)
		}

		content, err := tr.Content()
		if err != nil {
			return nil, err
		}

		target := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(target, content, 0o644); err != nil {
			return nil, err
		}
		written = append(written, tr.Info().Path)
	}
	return written, nil
}

// Run polls once immediately and then every PollInterval until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.opts.PollInterval)
	defer ticker.Stop()

	d.logger.WithField("interval", d.opts.PollInterval.String()).Info("Starting delivery polling")
	for {
		if _, err := d.Poll(ctx); err != nil && ctx.Err() == nil {
			d.logger.WithError(err).Error("Poll failed")
		}

		select {
		case <-ctx.Done():
			d.logger.Info("Delivery polling stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (d *Dispatcher) broadcast(messageType string, data any) {
	if d.hub != nil {
		d.hub.Broadcast(messageType, data, source)
	}
}
