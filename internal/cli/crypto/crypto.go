package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// keyLen - длина ключевого материала и производного ключа AES‑256 (в байтах).
	keyLen = 32
	// SaltLen - длина соли PBKDF2.
	SaltLen = 16
	// IVLen - длина nonce AES‑GCM.
	IVLen = 12
	// Iterations - число итераций PBKDF2‑HMAC‑SHA256.
	Iterations = 100_000
)

var (
	// ErrDecryption - неверный ключ, подменённый шифртекст или испорченный конверт.
	// Подробности намеренно не раскрываются.
	ErrDecryption = errors.New("decryption failed")

	// ErrInvalidEnvelope - конверт не удалось разобрать.
	ErrInvalidEnvelope = errors.New("invalid envelope")
)

// Envelope - зашифрованная заметка в том виде, в каком она уходит на сервер.
// Ciphertext содержит тег аутентификации GCM в конце.
type Envelope struct {
	Ciphertext []byte
	IV         []byte
	Salt       []byte
}

// wireEnvelope - JSON‑представление конверта: поля в стандартном base64.
type wireEnvelope struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
	Salt       string `json:"salt"`
}

// GenerateKey создаёт новый ключ заметки: 32 случайных байта в base64url без паддинга.
// Ключ передаётся только во фрагменте ссылки и никогда не отправляется на сервер.
func GenerateKey() (string, error) {
	raw := make([]byte, keyLen)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// deriveKey выводит ключ AES‑256 из ключевого материала заметки и соли.
func deriveKey(key string, salt []byte) []byte {
	return pbkdf2.Key([]byte(key), salt, Iterations, keyLen, sha256.New)
}

func newGCM(derived []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt шифрует plain с помощью AES‑256‑GCM. Пустой key означает «сгенерировать новый».
// Соль и nonce берутся свежими для каждого вызова.
// Возвращает конверт и ключ, которым его можно открыть.
func Encrypt(plain []byte, key string) (Envelope, string, error) {
	if key == "" {
		k, err := GenerateKey()
		if err != nil {
			return Envelope{}, "", err
		}
		key = k
	}

	salt := make([]byte, SaltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return Envelope{}, "", err
	}
	iv := make([]byte, IVLen)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return Envelope{}, "", err
	}

	gcm, err := newGCM(deriveKey(key, salt))
	if err != nil {
		return Envelope{}, "", err
	}
	out := gcm.Seal(nil, iv, plain, nil)
	return Envelope{Ciphertext: out, IV: iv, Salt: salt}, key, nil
}

// Decrypt расшифровывает конверт ключом key.
// Любая ошибка (ключ, тег, длины параметров) возвращается как ErrDecryption, без частичного результата.
func Decrypt(env Envelope, key string) ([]byte, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: empty key", ErrDecryption)
	}
	if len(env.Salt) != SaltLen || len(env.IV) != IVLen {
		return nil, fmt.Errorf("%w: %w", ErrDecryption, ErrInvalidEnvelope)
	}
	gcm, err := newGCM(deriveKey(key, env.Salt))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	if len(env.Ciphertext) < gcm.Overhead() {
		return nil, fmt.Errorf("%w: %w", ErrDecryption, ErrInvalidEnvelope)
	}
	plain, err := gcm.Open(nil, env.IV, env.Ciphertext, nil)
	if err != nil {
		return nil, ErrDecryption
	}
	if plain == nil {
		plain = []byte{}
	}
	return plain, nil
}

// Marshal кодирует конверт в JSON - непрозрачный для сервера blob.
func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(wireEnvelope{
		Ciphertext: base64.StdEncoding.EncodeToString(e.Ciphertext),
		IV:         base64.StdEncoding.EncodeToString(e.IV),
		Salt:       base64.StdEncoding.EncodeToString(e.Salt),
	})
}

// ParseEnvelope разбирает blob, полученный с сервера.
func ParseEnvelope(blob []byte) (Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal(blob, &w); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	ct, err := base64.StdEncoding.DecodeString(w.Ciphertext)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: ciphertext: %v", ErrInvalidEnvelope, err)
	}
	iv, err := base64.StdEncoding.DecodeString(w.IV)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: iv: %v", ErrInvalidEnvelope, err)
	}
	salt, err := base64.StdEncoding.DecodeString(w.Salt)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: salt: %v", ErrInvalidEnvelope, err)
	}
	return Envelope{Ciphertext: ct, IV: iv, Salt: salt}, nil
}

// Open разбирает blob и расшифровывает его. Ошибки разбора тоже считаются ErrDecryption.
func Open(blob []byte, key string) ([]byte, error) {
	env, err := ParseEnvelope(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryption, err)
	}
	return Decrypt(env, key)
}

// Seal шифрует plain и сразу кодирует конверт в blob.
func Seal(plain []byte, key string) ([]byte, string, error) {
	env, k, err := Encrypt(plain, key)
	if err != nil {
		return nil, "", err
	}
	blob, err := env.Marshal()
	if err != nil {
		return nil, "", err
	}
	return blob, k, nil
}
