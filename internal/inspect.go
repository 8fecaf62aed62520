package internal

import (
	"chat-sync/repositories"
	"fmt"

	"github.com/mama165/sdk-go/database"
)

// MessageMapper renders a stored message in the Badger inspector.
func MessageMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)
	record, err := repositories.DecodeRecord(val)
	if err != nil {
		row.Detail = "Error: decode failed"
		return row
	}
	row.Type = "MESSAGE"
	row.Detail = fmt.Sprintf("#%d %s: %s", record.ID, record.Username, record.Message)
	return row
}
