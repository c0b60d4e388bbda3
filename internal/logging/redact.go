package logging

import (
	"strconv"
	"strings"

	"github.com/fyrsmithlabs/audienced/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

const redactedValue = "[REDACTED]"

// Secret logs a config.Secret as its length only.
func Secret(key string, val config.Secret) zap.Field {
	return RedactedString(key, val.Value())
}

// RedactedString logs the length of val instead of val.
func RedactedString(key, val string) zap.Field {
	return zap.String(key, "[REDACTED:"+strconv.Itoa(len(val))+"]")
}

// RedactingEncoder replaces the value of any field whose key is on the
// deny list, whether the field is attached with With or passed per entry.
type RedactingEncoder struct {
	zapcore.Encoder
	deny map[string]bool
}

// NewRedactingEncoder wraps base. Keys match case-insensitively.
func NewRedactingEncoder(base zapcore.Encoder, keys []string) *RedactingEncoder {
	deny := make(map[string]bool, len(keys))
	for _, k := range keys {
		deny[strings.ToLower(k)] = true
	}
	return &RedactingEncoder{Encoder: base, deny: deny}
}

func (e *RedactingEncoder) denied(key string) bool {
	return e.deny[strings.ToLower(key)]
}

// EncodeEntry redacts per-entry fields before encoding.
func (e *RedactingEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	var out []zapcore.Field
	for i, f := range fields {
		if !e.denied(f.Key) {
			continue
		}
		if out == nil {
			out = append([]zapcore.Field(nil), fields...)
		}
		out[i] = zap.String(f.Key, redactedValue)
	}
	if out == nil {
		out = fields
	}
	return e.Encoder.EncodeEntry(ent, out)
}

// AddString redacts denied keys.
func (e *RedactingEncoder) AddString(key, val string) {
	if e.denied(key) {
		val = redactedValue
	}
	e.Encoder.AddString(key, val)
}

// AddByteString redacts denied keys.
func (e *RedactingEncoder) AddByteString(key string, val []byte) {
	if e.denied(key) {
		val = []byte(redactedValue)
	}
	e.Encoder.AddByteString(key, val)
}

// AddReflected redacts denied keys.
func (e *RedactingEncoder) AddReflected(key string, val interface{}) error {
	if e.denied(key) {
		e.Encoder.AddString(key, redactedValue)
		return nil
	}
	return e.Encoder.AddReflected(key, val)
}

// AddObject redacts denied keys.
func (e *RedactingEncoder) AddObject(key string, obj zapcore.ObjectMarshaler) error {
	if e.denied(key) {
		e.Encoder.AddString(key, redactedValue)
		return nil
	}
	return e.Encoder.AddObject(key, obj)
}

// Clone implements zapcore.Encoder.
func (e *RedactingEncoder) Clone() zapcore.Encoder {
	return &RedactingEncoder{Encoder: e.Encoder.Clone(), deny: e.deny}
}
