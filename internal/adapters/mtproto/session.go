package mtproto

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/gotd/td/crypto"
	"github.com/gotd/td/session"
	"github.com/gotd/td/tg"
)

// SessionRepo — хранилище сессионных блобов (реализуется repo.Postgres).
type SessionRepo interface {
	LoadMTProtoSession(ctx context.Context, name string) ([]byte, error)
	StoreMTProtoSession(ctx context.Context, name string, data []byte) error
}

// PGSessionStorage адаптирует SessionRepo под gotd session.Storage,
// чтобы сессия переживала перезапуски и деплой без файлов на диске.
type PGSessionStorage struct {
	repo SessionRepo
	name string
}

var _ session.Storage = (*PGSessionStorage)(nil)

// NewPGSessionStorage создаёт хранилище сессии с указанным именем.
func NewPGSessionStorage(repo SessionRepo, name string) *PGSessionStorage {
	if name == "" {
		name = "default"
	}
	return &PGSessionStorage{repo: repo, name: name}
}

// LoadSession загружает сессию из БД.
func (s *PGSessionStorage) LoadSession(ctx context.Context) ([]byte, error) {
	return s.repo.LoadMTProtoSession(ctx, s.name)
}

// StoreSession сохраняет сессию в БД.
func (s *PGSessionStorage) StoreSession(ctx context.Context, data []byte) error {
	return s.repo.StoreMTProtoSession(ctx, s.name, data)
}

// ErrUnsupportedSessionFormat возвращается, когда формат блоба сессии
// не распознан ни одним из известных конвертеров.
var ErrUnsupportedSessionFormat = errors.New("неизвестный формат MTProto-сессии")

// NormalizeSessionBytes приводит блоб сессии к JSON-формату gotd.
// Принимает уже готовый gotd JSON, строковые сессии Telethon и экспорт
// Telethon в JSON. Второй результат сообщает, потребовалась ли конвертация.
func NormalizeSessionBytes(raw []byte) ([]byte, bool, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, false, errors.New("сессия пуста")
	}

	var gotd struct {
		Version int `json:"Version"`
	}
	if err := json.Unmarshal(trimmed, &gotd); err == nil && gotd.Version != 0 {
		return append([]byte(nil), trimmed...), false, nil
	}

	if converted, err := convertTelethonAccountJSON(trimmed); err == nil {
		return converted, true, nil
	}
	if converted, err := convertTelethonSessionJSON(trimmed); err == nil {
		return converted, true, nil
	}
	if converted, err := convertTelethonString(trimmed); err == nil {
		return converted, true, nil
	}
	return nil, false, ErrUnsupportedSessionFormat
}

func convertTelethonAccountJSON(raw []byte) ([]byte, error) {
	var account struct {
		ExtraParams string `json:"extra_params"`
	}
	if err := json.Unmarshal(raw, &account); err != nil {
		return nil, err
	}
	if account.ExtraParams == "" {
		return nil, errors.New("в JSON аккаунта нет extra_params")
	}
	return convertTelethonString([]byte(account.ExtraParams))
}

func convertTelethonSessionJSON(raw []byte) ([]byte, error) {
	type telethonRow struct {
		DCID          int    `json:"dc_id"`
		ServerAddress string `json:"server_address"`
		Port          int    `json:"port"`
		AuthKey       string `json:"auth_key"`
	}

	var rows []telethonRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row.AuthKey == "" || row.ServerAddress == "" || row.Port == 0 {
			continue
		}
		return encodeSessionData(row.DCID, row.ServerAddress, row.Port, row.AuthKey)
	}
	return nil, errors.New("в JSON сессии Telethon нет пригодных строк")
}

func convertTelethonString(raw []byte) ([]byte, error) {
	candidate := strings.TrimSpace(string(raw))
	candidate = strings.Trim(candidate, "\"'\n\r\t")
	if candidate == "" {
		return nil, errors.New("строковая сессия Telethon пуста")
	}

	data, err := session.TelethonSession(candidate)
	if err != nil {
		return nil, err
	}

	if data.Config.ThisDC == 0 {
		data.Config.ThisDC = data.DC
	}
	if data.Addr != "" && len(data.Config.DCOptions) == 0 {
		host, portStr, splitErr := net.SplitHostPort(data.Addr)
		if splitErr == nil {
			if port, convErr := strconv.Atoi(portStr); convErr == nil {
				data.Config.DCOptions = []tg.DCOption{{
					ID:        data.DC,
					IPAddress: host,
					Port:      port,
				}}
			}
		}
	}

	return marshalSessionData(*data)
}

func encodeSessionData(dcID int, host string, port int, authKeyHex string) ([]byte, error) {
	authKeyHex = strings.TrimSpace(authKeyHex)
	authKeyHex = strings.Trim(authKeyHex, "'\"")
	if authKeyHex == "" {
		return nil, errors.New("auth_key пуст")
	}

	rawKey, err := hex.DecodeString(authKeyHex)
	if err != nil {
		return nil, fmt.Errorf("decode auth_key: %w", err)
	}
	if len(rawKey) != len(crypto.Key{}) {
		return nil, fmt.Errorf("неожиданная длина auth_key: %d байт", len(rawKey))
	}

	var key crypto.Key
	copy(key[:], rawKey)

	authKey := make([]byte, len(key))
	copy(authKey, key[:])

	id := key.WithID().ID
	authKeyID := make([]byte, len(id))
	copy(authKeyID, id[:])

	data := session.Data{
		Config: session.Config{
			ThisDC:    dcID,
			DCOptions: []tg.DCOption{{ID: dcID, IPAddress: host, Port: port}},
		},
		DC:        dcID,
		Addr:      net.JoinHostPort(host, strconv.Itoa(port)),
		AuthKey:   authKey,
		AuthKeyID: authKeyID,
	}
	return marshalSessionData(data)
}

func marshalSessionData(data session.Data) ([]byte, error) {
	payload := struct {
		Version int          `json:"Version"`
		Data    session.Data `json:"Data"`
	}{
		Version: 1,
		Data:    data,
	}
	return json.Marshal(payload)
}
