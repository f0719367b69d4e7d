package engine

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"strings"
)

// DefaultWorldSeed keys every draw unless a save file was created under a
// different seed. Changing it reshuffles every neighborhood.
const DefaultWorldSeed = "geocoin"

// drawSuffix pins the HMAC message to "key:0:0" so saved worlds keep
// their luck values.
const drawSuffix = ":0:0"

// Luck maps key to a reproducible value in [0, 1). It is a pure function of
// (worldSeed, key): the first four bytes of HMAC-SHA256(worldSeed, key+":0:0").
func Luck(worldSeed, key string) float64 {
	h := hmac.New(sha256.New, []byte(worldSeed))
	h.Write([]byte(key + drawSuffix))
	sum := h.Sum(nil)
	return bytesToFloat([4]byte{sum[0], sum[1], sum[2], sum[3]})
}

// bytesToFloat folds 4 bytes into [0, 1): b0/256 + b1/256² + b2/256³ + b3/256⁴
func bytesToFloat(b [4]byte) float64 {
	result := 0.0
	scale := 1.0
	for _, v := range b {
		scale /= 256
		result += float64(v) * scale
	}
	return result
}

// Key joins parts with commas, e.g. Key(3, -4, "initialValue") = "3,-4,initialValue".
func Key(parts ...any) string {
	strs := make([]string, len(parts))
	for i, p := range parts {
		strs[i] = fmt.Sprint(p)
	}
	return strings.Join(strs, ",")
}
