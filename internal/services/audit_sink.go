package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Renarion/AI-for-mock-interview/internal/database"
	"github.com/Renarion/AI-for-mock-interview/internal/models"

	"go.mongodb.org/mongo-driver/mongo"
)

// AuditFeedbackChannel is the Redis channel accepted answers are published on
const AuditFeedbackChannel = "interview:feedback"

// AuditSink receives one record per accepted answer. Emit must not block
// and must not report failures back to the caller.
type AuditSink interface {
	Emit(record *models.LLMAnswer)
}

// AuditWriter persists audit records somewhere durable
type AuditWriter interface {
	Name() string
	WriteAudit(ctx context.Context, record *models.LLMAnswer) error
}

// AuditDispatcher queues records and fans them out to writers on a
// background worker. Write failures are logged and dropped.
type AuditDispatcher struct {
	writers      []AuditWriter
	queue        chan *models.LLMAnswer
	writeTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewAuditDispatcher starts the dispatcher worker
func NewAuditDispatcher(bufferSize int, writers ...AuditWriter) *AuditDispatcher {
	if bufferSize < 1 {
		bufferSize = 1
	}
	d := &AuditDispatcher{
		writers:      writers,
		queue:        make(chan *models.LLMAnswer, bufferSize),
		writeTimeout: 10 * time.Second,
	}

	d.wg.Add(1)
	go d.run()

	names := make([]string, 0, len(writers))
	for _, w := range writers {
		names = append(names, w.Name())
	}
	log.Printf("✅ [AUDIT] Dispatcher started (buffer: %d, writers: %v)", bufferSize, names)
	return d
}

// Emit enqueues a record; it drops the record when the queue is full or closed
func (d *AuditDispatcher) Emit(record *models.LLMAnswer) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		GetMetrics().RecordAuditDropped()
		log.Printf("⚠️  [AUDIT] Dispatcher closed, dropping feedback %s", record.FeedbackID)
		return
	}

	select {
	case d.queue <- record:
	default:
		GetMetrics().RecordAuditDropped()
		log.Printf("⚠️  [AUDIT] Queue full, dropping feedback %s", record.FeedbackID)
	}
}

func (d *AuditDispatcher) run() {
	defer d.wg.Done()
	for record := range d.queue {
		d.write(record)
	}
}

func (d *AuditDispatcher) write(record *models.LLMAnswer) {
	for _, w := range d.writers {
		ctx, cancel := context.WithTimeout(context.Background(), d.writeTimeout)
		if err := w.WriteAudit(ctx, record); err != nil {
			log.Printf("⚠️  [AUDIT] %s failed to store feedback %s: %v", w.Name(), record.FeedbackID, err)
		}
		cancel()
	}
}

// Close stops accepting records and waits for the queue to drain
func (d *AuditDispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
	log.Println("✅ [AUDIT] Dispatcher drained")
}

// MongoAuditWriter stores records in the llm_answers collection
type MongoAuditWriter struct {
	collection *mongo.Collection
}

func NewMongoAuditWriter(db *database.MongoDB) *MongoAuditWriter {
	return &MongoAuditWriter{collection: db.Collection(database.CollectionLLMAnswers)}
}

func (w *MongoAuditWriter) Name() string { return "mongodb" }

func (w *MongoAuditWriter) WriteAudit(ctx context.Context, record *models.LLMAnswer) error {
	if _, err := w.collection.InsertOne(ctx, record); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("failed to insert llm answer: %w", err)
	}
	return nil
}

// RedisAuditWriter publishes records for live consumers such as analytics
type RedisAuditWriter struct {
	redis   *RedisService
	channel string
}

func NewRedisAuditWriter(redisService *RedisService) *RedisAuditWriter {
	return &RedisAuditWriter{redis: redisService, channel: AuditFeedbackChannel}
}

func (w *RedisAuditWriter) Name() string { return "redis" }

func (w *RedisAuditWriter) WriteAudit(ctx context.Context, record *models.LLMAnswer) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal llm answer: %w", err)
	}
	return w.redis.Publish(ctx, w.channel, payload)
}
