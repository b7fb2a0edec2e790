package domain

import "time"

// ImportStatus is the outcome of one load attempt.
type ImportStatus string

const (
	ImportAccepted ImportStatus = "accepted"
	ImportRejected ImportStatus = "rejected"
	ImportFailed   ImportStatus = "failed"
)

var importStatusLabels = map[ImportStatus]string{
	ImportAccepted: "数据加载成功",
	ImportRejected: "缺少必要列",
	ImportFailed:   "数据加载失败",
}

// Label returns a human-readable label for an import status.
func (s ImportStatus) Label() string {
	if label, ok := importStatusLabels[s]; ok {
		return label
	}

	return string(s)
}

// ImportLogEntry records one load attempt, accepted or not.
type ImportLogEntry struct {
	ID             string       `json:"id" db:"id"`
	DatasetID      string       `json:"dataset_id,omitempty" db:"dataset_id"`
	FileName       string       `json:"file_name" db:"file_name"`
	SizeBytes      int64        `json:"size_bytes" db:"size_bytes"`
	Encoding       string       `json:"encoding" db:"encoding"`
	EncodingSource string       `json:"encoding_source" db:"encoding_source"`
	Rows           int          `json:"rows" db:"row_count"`
	Status         ImportStatus `json:"status" db:"status"`
	Message        string       `json:"message" db:"message"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
}
