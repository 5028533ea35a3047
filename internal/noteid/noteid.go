// Package noteid задаёт политику идентификаторов заметок: генерацию,
// проверку допустимого алфавита и очистку перед построением путей и ключей.
package noteid

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// MaxLen - максимальная длина идентификатора.
const MaxLen = 128

var idRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Generate возвращает новый идентификатор (UUIDv4 из криптостойкого источника).
// Результат всегда проходит Validate.
func Generate() string {
	return uuid.NewString()
}

// Validate принимает только буквы, цифры, '-' и '_' длиной от 1 до MaxLen.
// Разделители путей, точки и любые другие символы отвергаются.
func Validate(id string) bool {
	return len(id) > 0 && len(id) <= MaxLen && idRe.MatchString(id)
}

// Sanitize удаляет всё, что не входит в алфавит идентификатора.
// Хранилища, строящие пути или ключи из id, вызывают её независимо от Validate.
func Sanitize(id string) string {
	var b strings.Builder
	b.Grow(len(id))
	for i := 0; i < len(id); i++ {
		c := id[i]
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-' || c == '_' {
			b.WriteByte(c)
		}
	}
	s := b.String()
	if len(s) > MaxLen {
		s = s[:MaxLen]
	}
	return s
}

// Fingerprint - короткий отпечаток id для логов.
// Идентификатор даёт право прочитать заметку, поэтому в логи он не попадает.
func Fingerprint(id string) string {
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:6])
}
