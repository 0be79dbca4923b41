package feed

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrNotConnected  = errors.New("feed: not connected")
	ErrAlreadyClosed = errors.New("feed: already closed")
)

// TimestampedMessage wraps a raw frame with the local receive time,
// captured as close to the socket read as possible so downstream
// latency measurements reflect wire time, not queueing time.
type TimestampedMessage struct {
	Data       []byte
	ReceivedAt time.Time
}

// subscribeCmd is the client->server subscribe frame for the market
// channel. Polymarket chunks subscriptions at 500 asset ids per frame.
type subscribeCmd struct {
	AssetsIDs []string `json:"assets_ids"`
	Type      string   `json:"type"`
}

// unsubscribeCmd is the client->server unsubscribe frame. Unlike
// subscribe it carries an explicit "operation" field rather than
// "type" — this asymmetry is the upstream wire protocol, not a typo.
type unsubscribeCmd struct {
	AssetsIDs []string `json:"assets_ids"`
	Operation string   `json:"operation"`
}

// MaxAssetsPerFrame bounds how many asset ids go in a single
// subscribe/unsubscribe frame.
const MaxAssetsPerFrame = 500

func chunkAssetIDs(ids []string) [][]string {
	if len(ids) == 0 {
		return nil
	}
	var chunks [][]string
	for i := 0; i < len(ids); i += MaxAssetsPerFrame {
		end := i + MaxAssetsPerFrame
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[i:end])
	}
	return chunks
}

func marshalSubscribe(ids []string) ([]byte, error) {
	return json.Marshal(subscribeCmd{AssetsIDs: ids, Type: "market"})
}

func marshalUnsubscribe(ids []string) ([]byte, error) {
	return json.Marshal(unsubscribeCmd{AssetsIDs: ids, Operation: "unsubscribe"})
}
