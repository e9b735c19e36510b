package util

import (
	"math/rand"
	"runtime"
	"runtime/debug"

	log "github.com/pion/ion-log"
)

// RandomString generate a random string
func RandomString(n int) string {
	var letterRunes = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ1234567890")
	b := make([]rune, n)
	for i := range b {
		b[i] = letterRunes[rand.Intn(len(letterRunes))]
	}
	return string(b)
}

// RandomRequestID returns a correlation id for an outbound request.
// The range is wide enough that a collision with another pending id
// on the same connection is improbable.
func RandomRequestID() int64 {
	return 10000000 + rand.Int63n(90000000)
}

// Recover print stack
func Recover(flag string) {
	_, _, l, _ := runtime.Caller(1)
	if err := recover(); err != nil {
		log.Errorf("[%s] Recover panic line => %v", flag, l)
		log.Errorf("[%s] Recover err => %v", flag, err)
		debug.PrintStack()
	}
}
