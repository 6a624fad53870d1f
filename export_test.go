package goAccess

import "time"

// TOTPCodeAt derives the code for secretBase32 at the step containing at, shifted by
// offset steps.
func TOTPCodeAt(cfg TOTPConfig, secretBase32 string, at time.Time, offset int) (string, error) {
	secret, err := decodeSecret(secretBase32)
	if err != nil {
		return "", err
	}
	counter := at.Unix()/int64(cfg.Period) + int64(offset)
	return hotpCode(secret, counter, cfg.Digits, cfg.Algorithm)
}
