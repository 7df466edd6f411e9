package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Kind
	}{
		{"email", "user@example.com", KindEmail},
		{"bare at sign", "@", KindEmail},
		{"phone ten digits", "1234567890", KindPhone},
		{"phone with country code", "79991234567", KindPhone},
		{"nine digits too short", "123456789", KindUnrecognized},
		{"phone with plus sign", "+79991234567", KindUnrecognized},
		{"url", "https://example.com", KindURL},
		{"url without scheme separator", "httpfoo", KindURL},
		{"uppercase scheme", "HTTP://example.com", KindUnrecognized},
		{"ip", "8.8.8.8", KindIP},
		{"ip out of range", "999.999.999.999", KindIP},
		{"ip with empty octet", "1..2.3", KindUnrecognized},
		{"ip too many dots", "1.2.3.4.5", KindUnrecognized},
		{"ip with letters", "1.2.3.a", KindUnrecognized},
		{"question marks", "???", KindUnrecognized},
		{"empty", "", KindUnrecognized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.input))
		})
	}
}

func TestClassify_PriorityOrder(t *testing.T) {
	// email beats everything
	assert.Equal(t, KindEmail, Classify("http://user@10.0.0.1"))
	// url beats ip: the dotted quad after the scheme never reaches the ip rule
	assert.Equal(t, KindURL, Classify("http://192.168.1.1"))
	// a long digit string is a phone even though it could be nothing else
	assert.Equal(t, KindPhone, Classify("12345678901234"))
}

func TestClassify_Deterministic(t *testing.T) {
	inputs := []string{"a@b", "1234567890", "http://x", "1.2.3.4", "nope"}
	for _, in := range inputs {
		first := Classify(in)
		for i := 0; i < 5; i++ {
			assert.Equal(t, first, Classify(in), in)
		}
	}
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "email", KindEmail.String())
	assert.Equal(t, "phone", KindPhone.String())
	assert.Equal(t, "url", KindURL.String())
	assert.Equal(t, "ip", KindIP.String())
	assert.Equal(t, "unrecognized", KindUnrecognized.String())
	assert.Equal(t, "unrecognized", Kind(42).String())
}
