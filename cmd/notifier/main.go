package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/salesdeskhq/salesdesk/internal/config"
	"github.com/salesdeskhq/salesdesk/internal/db"
	"github.com/salesdeskhq/salesdesk/internal/store"
	"github.com/salesdeskhq/salesdesk/internal/store/rabbitmq"
)

func notifierConcurrency() int {
	v := os.Getenv("NOTIFIER_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)
	st := store.New(gdb)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("rabbit dial: %v", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatalf("rabbit channel: %v", err)
	}
	defer ch.Close()

	// args must match the publisher's declaration or RabbitMQ rejects it
	_, err = ch.QueueDeclare(cfg.RabbitQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": cfg.RabbitQueue + ".dlq",
	})
	if err != nil {
		log.Fatalf("queue declare: %v", err)
	}

	concurrency := notifierConcurrency()

	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatalf("qos: %v", err)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("notifier started, queue=%s concurrency=%d", cfg.RabbitQueue, concurrency)

	// worker pool
	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				var ev rabbitmq.MessageCreated
				if err := json.Unmarshal(d.Body, &ev); err != nil || ev.ChatID == 0 {
					log.Printf("worker=%d bad message: %v", workerID, err)
					_ = d.Nack(false, false)
					continue
				}

				start := time.Now()
				if err := handleEvent(ctx, st, ev); err != nil {
					log.Printf("worker=%d event chat=%d msg=%d failed cost=%s err=%v",
						workerID, ev.ChatID, ev.MessageID, time.Since(start), err)
					_ = d.Nack(false, false)
					continue
				}

				if err := d.Ack(false); err != nil {
					log.Printf("worker=%d ack failed chat=%d err=%v", workerID, ev.ChatID, err)
				}
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			log.Printf("notifier shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Printf("delivery channel closed")
				time.Sleep(1 * time.Second)
				continue
			}
			jobs <- d
		}
	}
}

// handleEvent records an offline notification for every participant except
// the sender. Connected participants get the live broadcast instead; the
// per-session poller reconciles whoever missed both.
func handleEvent(ctx context.Context, st *store.Store, ev rabbitmq.MessageCreated) error {
	participants, err := st.Participants(ctx, ev.ChatID)
	if err != nil {
		return err
	}
	for _, uid := range participants {
		if uid == ev.SenderID {
			continue
		}
		if err := st.CreateNotification(ctx, uid, ev.ChatID, ev.Preview); err != nil {
			return err
		}
	}
	return nil
}
