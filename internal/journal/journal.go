// Package journal persists optimizer runs and their progress records to a
// sqlite database.
package journal

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

type Journal struct {
	db    *sql.DB
	runID string

	in   chan record
	done chan struct{}
	wg   sync.WaitGroup
}

type record struct {
	at        time.Time
	iteration int
	peak      uint64
	totalTime uint64
	queueLen  int
}

const batchSize = 100

func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("setting wal mode: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		input TEXT NOT NULL,
		mem_limit INTEGER NOT NULL,
		origin_peak INTEGER NOT NULL,
		origin_time INTEGER NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		satisfied INTEGER,
		best_peak INTEGER,
		best_time INTEGER,
		iterations INTEGER
	);

	CREATE TABLE IF NOT EXISTS progress (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		at DATETIME NOT NULL,
		iteration INTEGER NOT NULL,
		peak INTEGER NOT NULL,
		total_time INTEGER NOT NULL,
		queue_len INTEGER NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("initializing journal schema: %w", err)
	}

	j := &Journal{
		db:   db,
		in:   make(chan record, 1000),
		done: make(chan struct{}),
	}
	j.wg.Add(1)
	go j.loop()
	return j, nil
}

func (j *Journal) Close() error {
	close(j.done)
	j.wg.Wait()
	return j.db.Close()
}

// Begin opens a new run row and makes it the target of later records.
func (j *Journal) Begin(input string, limit, originPeak, originTime uint64) error {
	j.runID = uuid.New().String()
	_, err := j.db.Exec(`
		INSERT INTO runs (id, input, mem_limit, origin_peak, origin_time, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, j.runID, input, int64(limit), int64(originPeak), int64(originTime), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	return nil
}

// Progress records one search progress snapshot. Non-blocking: records are
// dropped when the buffer is full rather than stalling the search.
func (j *Journal) Progress(iteration int, peak, totalTime uint64, queueLen int) {
	select {
	case j.in <- record{
		at:        time.Now(),
		iteration: iteration,
		peak:      peak,
		totalTime: totalTime,
		queueLen:  queueLen,
	}:
	default:
		log.Printf("journal: dropped progress record %d (buffer full)", iteration)
	}
}

// Finish closes the run row with the final outcome.
func (j *Journal) Finish(satisfied bool, bestPeak, bestTime uint64, iterations int) error {
	_, err := j.db.Exec(`
		UPDATE runs SET finished_at = ?, satisfied = ?, best_peak = ?, best_time = ?, iterations = ?
		WHERE id = ?
	`, time.Now().UTC(), satisfied, int64(bestPeak), int64(bestTime), iterations, j.runID)
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	return nil
}

func (j *Journal) loop() {
	defer j.wg.Done()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	var batch []record
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := j.writeBatch(batch); err != nil {
			log.Printf("journal: writeBatch failed: %v", err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case rec := <-j.in:
			batch = append(batch, rec)
			if len(batch) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-j.done:
			// Drain whatever is still buffered before the final flush.
			for {
				select {
				case rec := <-j.in:
					batch = append(batch, rec)
					continue
				default:
				}
				break
			}
			flush()
			return
		}
	}
}

func (j *Journal) writeBatch(batch []record) error {
	tx, err := j.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO progress (run_id, at, iteration, peak, total_time, queue_len)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range batch {
		if _, err := stmt.Exec(j.runID, r.at.UTC(), r.iteration, int64(r.peak), int64(r.totalTime), r.queueLen); err != nil {
			return err
		}
	}
	return tx.Commit()
}
