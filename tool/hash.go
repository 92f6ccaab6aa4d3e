package tool

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const batchSuffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// BatchSuffixLen is the length of the random part of a batch id.
const BatchSuffixLen = 9

func GenerateRandomUUID() string {
	return uuid.New().String()
}

// GenerateBatchID returns "<unix millis>-<9 lowercase alphanumerics>", the same shape
// browsers generate for one drag-and-drop operation.
func GenerateBatchID() string {
	// bytes at or above the largest multiple of the alphabet size are redrawn so every
	// character is equally likely
	const limit = 256 - 256%len(batchSuffixAlphabet)
	suffix := make([]byte, 0, BatchSuffixLen)
	buf := make([]byte, BatchSuffixLen*2)
	for len(suffix) < BatchSuffixLen {
		rand.Read(buf)
		for _, c := range buf {
			if int(c) >= limit || len(suffix) == BatchSuffixLen {
				continue
			}
			suffix = append(suffix, batchSuffixAlphabet[int(c)%len(batchSuffixAlphabet)])
		}
	}
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), suffix)
}
