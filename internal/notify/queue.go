package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"contacts-api/internal/email"
	"contacts-api/internal/metrics"
)

// Message es un correo de verificacion pendiente de entrega.
type Message struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Link     string `json:"link"`
}

// Deliverer entrega un mensaje de forma sincrona.
type Deliverer interface {
	Deliver(ctx context.Context, msg Message) error
}

// Dispatcher recibe mensajes sin bloquear al llamador.
type Dispatcher interface {
	Dispatch(msg Message)
}

var ErrQueueClosed = errors.New("notification queue closed")

// Queue entrega mensajes en segundo plano con un pool fijo de workers.
// No hay garantia de entrega ni reintentos: los errores se loguean y se cuentan.
type Queue struct {
	logger    *zap.Logger
	deliverer Deliverer
	timeout   time.Duration
	jobs      chan Message

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewQueue(logger *zap.Logger, deliverer Deliverer, workers, size int, timeout time.Duration) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	if workers <= 0 {
		workers = 1
	}
	if size <= 0 {
		size = 100
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	q := &Queue{
		logger:    logger,
		deliverer: deliverer,
		timeout:   timeout,
		jobs:      make(chan Message, size),
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

// Dispatch encola el mensaje; si la cola esta llena o cerrada el mensaje se descarta.
func (q *Queue) Dispatch(msg Message) {
	if err := q.TryDispatch(msg); err != nil {
		metrics.RecordNotification("dropped")
		q.logger.Warn("verification email dropped", zap.Error(err), zap.String("email", msg.Email))
	}
}

func (q *Queue) TryDispatch(msg Message) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.jobs <- msg:
		return nil
	default:
		return errors.New("notification queue full")
	}
}

// Close deja de aceptar mensajes y espera a que se vacie la cola.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()
	q.wg.Wait()
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for msg := range q.jobs {
		q.deliver(msg)
	}
}

func (q *Queue) deliver(msg Message) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordNotification("failed")
			q.logger.Error("verification email panic", zap.Any("panic", r), zap.String("email", msg.Email))
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	if err := q.deliverer.Deliver(ctx, msg); err != nil {
		metrics.RecordNotification("failed")
		q.logger.Warn("send verification email failed", zap.Error(err), zap.String("email", msg.Email))
		return
	}
	metrics.RecordNotification("sent")
	q.logger.Info("verification email sent", zap.String("email", msg.Email))
}

// EmailDeliverer entrega mensajes usando un email.Sender (SMTP).
type EmailDeliverer struct {
	sender email.Sender
}

func NewEmailDeliverer(sender email.Sender) *EmailDeliverer {
	return &EmailDeliverer{sender: sender}
}

func (d *EmailDeliverer) Deliver(ctx context.Context, msg Message) error {
	return d.sender.SendVerificationEmail(ctx, msg.Email, msg.Username, msg.Link)
}
