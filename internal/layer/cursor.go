package layer

import "fmt"

// Cursor tracks which record of the current mini-batch is being written.
//
// Every layer of a network is handed the same *Cursor, so all per-record
// writes of one sweep land in the same batch slot. All layers must finish
// writing record r before PrepareForNewRecord moves on to r+1.
// A Cursor is not safe for concurrent use.
type Cursor struct {
	record    int
	batchSize int
}

// NewCursor returns a cursor with no batch prepared.
func NewCursor() *Cursor {
	return &Cursor{}
}

// PrepareForNewBatch rewinds the cursor to record 0 of a batch of batchSize records.
func (c *Cursor) PrepareForNewBatch(batchSize int) error {
	if batchSize <= 0 {
		return fmt.Errorf("batch size %d: %w", batchSize, ErrIndexOutOfRange)
	}
	c.record = 0
	c.batchSize = batchSize
	return nil
}

// PrepareForNewRecord advances the cursor to the next record.
func (c *Cursor) PrepareForNewRecord() {
	c.record++
}

// Record returns the index of the record currently being written.
func (c *Cursor) Record() int {
	return c.record
}

// BatchSize returns the size of the batch prepared last.
func (c *Cursor) BatchSize() int {
	return c.batchSize
}

// Done reports whether every record of the batch has been visited.
func (c *Cursor) Done() bool {
	return c.record >= c.batchSize
}
