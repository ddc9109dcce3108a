package uid

import "strings"

// MaxKeyFields bounds the number of fields in a Key.
const MaxKeyFields = 8

// Unknown is the rendered key of a row whose key fields are all missing.
const Unknown = "unknown"

// Key is a composite identity key. It is comparable and usable as a map key;
// two keys are equal when they have the same fields with the same values and
// the same null pattern.
type Key struct {
	n      uint8
	nulls  uint8
	fields [MaxKeyFields]string
}

// keyBuilder assembles a Key field by field.
type keyBuilder struct{ k Key }

func (b *keyBuilder) add(v string, ok bool) {
	i := b.k.n
	if ok {
		b.k.fields[i] = v
	} else {
		b.k.nulls |= 1 << i
	}
	b.k.n++
}

// Len is the number of fields.
func (k Key) Len() int { return int(k.n) }

// Field returns field i; ok is false when it is missing.
func (k Key) Field(i int) (string, bool) {
	if k.nulls&(1<<uint(i)) != 0 {
		return "", false
	}
	return k.fields[i], true
}

// IsUnknown reports whether every field is missing.
func (k Key) IsUnknown() bool {
	return k.n > 0 && k.nulls == uint8(1<<k.n-1)
}

// Prefix returns the key made of the first n fields.
func (k Key) Prefix(n int) Key {
	var p Key
	p.n = uint8(n)
	p.nulls = k.nulls & uint8(1<<n-1)
	copy(p.fields[:n], k.fields[:n])
	return p
}

// String renders the key as its fields joined by '_', with "nan" for missing
// fields, or Unknown when every field is missing. Field values are escaped so
// distinct keys never render alike: '\' and '_' get a backslash, as does a
// value equal to "nan" or Unknown.
func (k Key) String() string {
	if k.IsUnknown() {
		return Unknown
	}
	var sb strings.Builder
	for i := 0; i < int(k.n); i++ {
		if i > 0 {
			sb.WriteByte('_')
		}
		if v, ok := k.Field(i); ok {
			writeEscaped(&sb, v)
		} else {
			sb.WriteString("nan")
		}
	}
	return sb.String()
}

var fieldEscaper = strings.NewReplacer(`\`, `\\`, "_", `\_`)

func writeEscaped(sb *strings.Builder, v string) {
	if v == "nan" || v == Unknown {
		sb.WriteByte('\\')
	}
	_, _ = fieldEscaper.WriteString(sb, v)
}

// encode is an injective rendering used to persist keys.
func (k Key) encode() string {
	var sb strings.Builder
	for i := 0; i < int(k.n); i++ {
		if i > 0 {
			sb.WriteByte(0x1f)
		}
		if v, ok := k.Field(i); ok {
			sb.WriteByte('=')
			sb.WriteString(v)
		} else {
			sb.WriteByte('!')
		}
	}
	return sb.String()
}
