package memory

import "time"

func (db *DB) SetRowLockWait(d time.Duration) { db.lockWait = d }
