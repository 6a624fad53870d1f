package goAccess

import (
	"net/url"
	"strings"
	"testing"
	"time"
)

func rfcManager(algorithm string, digits, skew int) *totpManager {
	return newTOTPManager(TOTPConfig{
		Issuer:    "goAccess",
		Digits:    digits,
		Period:    30,
		Algorithm: algorithm,
		Skew:      skew,
	})
}

func TestTOTPVerifyRFCVectors(t *testing.T) {
	tests := []struct {
		algorithm string
		secret    string
		vectors   map[int64]string
	}{
		{
			algorithm: "SHA1",
			secret:    "12345678901234567890",
			vectors: map[int64]string{
				59:          "94287082",
				1111111109:  "07081804",
				1111111111:  "14050471",
				1234567890:  "89005924",
				2000000000:  "69279037",
				20000000000: "65353130",
			},
		},
		{
			algorithm: "SHA256",
			secret:    "12345678901234567890123456789012",
			vectors: map[int64]string{
				59:          "46119246",
				1111111109:  "68084774",
				1111111111:  "67062674",
				1234567890:  "91819424",
				2000000000:  "90698825",
				20000000000: "77737706",
			},
		},
		{
			algorithm: "SHA512",
			secret:    "1234567890123456789012345678901234567890123456789012345678901234",
			vectors: map[int64]string{
				59:          "90693936",
				1111111109:  "25091201",
				1111111111:  "99943326",
				1234567890:  "93441116",
				2000000000:  "38618901",
				20000000000: "47863826",
			},
		},
	}

	for _, tt := range tests {
		m := rfcManager(tt.algorithm, 8, 0)
		secret := totpEncoding.EncodeToString([]byte(tt.secret))
		for ts, code := range tt.vectors {
			ok, err := m.verify(secret, code, time.Unix(ts, 0))
			if err != nil || !ok {
				t.Fatalf("%s vector failed at t=%d, ok=%v err=%v", tt.algorithm, ts, ok, err)
			}
		}
	}
}

func TestTOTPSkewWindow(t *testing.T) {
	m := rfcManager("SHA1", 6, 1)
	raw := []byte("12345678901234567890")
	secret := totpEncoding.EncodeToString(raw)
	now := time.Unix(1234567890, 0)
	base := now.Unix() / 30

	for _, step := range []int64{-1, 0, 1} {
		code, err := hotpCode(raw, base+step, 6, "SHA1")
		if err != nil {
			t.Fatalf("hotpCode: %v", err)
		}
		ok, err := m.verify(secret, code, now)
		if err != nil || !ok {
			t.Fatalf("step %d rejected, ok=%v err=%v", step, ok, err)
		}
	}
	for _, step := range []int64{-10, -2, 2, 10} {
		code, _ := hotpCode(raw, base+step, 6, "SHA1")
		ok, err := m.verify(secret, code, now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ok {
			t.Fatalf("step %d accepted", step)
		}
	}
}

func TestTOTPRejectsMalformedCodes(t *testing.T) {
	m := rfcManager("SHA1", 6, 1)
	secret := totpEncoding.EncodeToString([]byte("12345678901234567890"))

	for _, code := range []string{"", "12345", "1234567", "12a456", "１２３４５６"} {
		ok, err := m.verify(secret, code, time.Now())
		if err != nil {
			t.Fatalf("code %q: unexpected error %v", code, err)
		}
		if ok {
			t.Fatalf("code %q accepted", code)
		}
	}
}

func TestTOTPAcceptsSpacedCode(t *testing.T) {
	m := rfcManager("SHA1", 6, 0)
	raw := []byte("12345678901234567890")
	now := time.Unix(1234567890, 0)
	code, _ := hotpCode(raw, now.Unix()/30, 6, "SHA1")

	ok, err := m.verify(totpEncoding.EncodeToString(raw), " "+code[:3]+" "+code[3:]+" ", now)
	if err != nil || !ok {
		t.Fatalf("spaced code rejected, ok=%v err=%v", ok, err)
	}
}

func TestTOTPGeneratedSecret(t *testing.T) {
	m := newTOTPManager(DefaultConfig().TOTP)
	secret, err := m.generateSecret()
	if err != nil {
		t.Fatalf("generateSecret: %v", err)
	}
	raw, err := decodeSecret(strings.ToLower(secret))
	if err != nil {
		t.Fatalf("decodeSecret: %v", err)
	}
	if len(raw) != 20 {
		t.Fatalf("secret bytes = %d", len(raw))
	}
	if _, err := decodeSecret("!!!"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestTOTPProvisionURI(t *testing.T) {
	m := newTOTPManager(DefaultConfig().TOTP)
	uri := m.provisionURI(m.issuerFor(KindAdmin), "ops@example.com", "JBSWY3DPEHPK3PXP")

	u, err := url.Parse(uri)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !strings.HasPrefix(u.Path, "/goAccess Admin:ops@example.com") {
		t.Fatalf("label path = %q", u.Path)
	}
	q := u.Query()
	if q.Get("issuer") != "goAccess Admin" || q.Get("algorithm") != "SHA1" || q.Get("period") != "30" {
		t.Fatalf("query = %v", q)
	}
}
