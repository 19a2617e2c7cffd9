// Package signature проверяет подпись вебхуков платёжного провайдера.
//
// Заголовок имеет вид "t=<unix>,v1=<hex>", где hex - HMAC-SHA256 от строки
// "<t>.<тело запроса>" на общем секрете. Допускается несколько значений v1
// (провайдер подписывает старым и новым секретом во время ротации).
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Header имя HTTP-заголовка с подписью.
const Header = "Billing-Signature"

var (
	// ErrMissing заголовок подписи отсутствует или пуст.
	ErrMissing = errors.New("signature header missing")
	// ErrMalformed заголовок не разбирается.
	ErrMalformed = errors.New("signature header malformed")
	// ErrExpired метка времени вне допустимого окна.
	ErrExpired = errors.New("signature timestamp outside tolerance")
	// ErrMismatch ни одна подпись не совпала.
	ErrMismatch = errors.New("signature mismatch")
)

// Verifier проверяет подписи общим секретом.
type Verifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewVerifier создаёт Verifier. tolerance <= 0 отключает проверку метки времени.
func NewVerifier(secret string, tolerance time.Duration) *Verifier {
	return &Verifier{secret: []byte(secret), tolerance: tolerance, now: time.Now}
}

// Verify проверяет заголовок для тела запроса.
func (v *Verifier) Verify(header string, body []byte) error {
	const op = "signature.Verify"
	if strings.TrimSpace(header) == "" {
		return fmt.Errorf("%s: %w", op, ErrMissing)
	}

	ts, sigs, err := parse(header)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if v.tolerance > 0 {
		diff := v.now().Sub(time.Unix(ts, 0))
		if diff < 0 {
			diff = -diff
		}
		if diff > v.tolerance {
			return fmt.Errorf("%s: %w", op, ErrExpired)
		}
	}

	expected := v.mac(ts, body)
	for _, sig := range sigs {
		if hmac.Equal(sig, expected) {
			return nil
		}
	}
	return fmt.Errorf("%s: %w", op, ErrMismatch)
}

// Sign строит заголовок для тела и метки времени. Используется в тестах и утилитах.
func (v *Verifier) Sign(body []byte, at time.Time) string {
	ts := at.Unix()
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(v.mac(ts, body)))
}

func (v *Verifier) mac(ts int64, body []byte) []byte {
	h := hmac.New(sha256.New, v.secret)
	h.Write([]byte(strconv.FormatInt(ts, 10)))
	h.Write([]byte("."))
	h.Write(body)
	return h.Sum(nil)
}

func parse(header string) (int64, [][]byte, error) {
	var (
		ts    int64
		hasTS bool
		sigs  [][]byte
	)
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return 0, nil, ErrMalformed
		}
		switch key {
		case "t":
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, nil, ErrMalformed
			}
			ts, hasTS = n, true
		case "v1":
			sig, err := hex.DecodeString(value)
			if err != nil {
				return 0, nil, ErrMalformed
			}
			sigs = append(sigs, sig)
		}
	}
	if !hasTS || len(sigs) == 0 {
		return 0, nil, ErrMalformed
	}
	return ts, sigs, nil
}
