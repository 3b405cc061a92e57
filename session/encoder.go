package session

import (
	"encoding/base64"
	"encoding/json"
	"errors"
)

// recordV1 is the stored JSON shape. The version field guards against
// decoding records written by a future schema.
type recordV1 struct {
	V           int    `json:"v"`
	SessionID   string `json:"sid"`
	UserID      string `json:"uid"`
	Email       string `json:"email"`
	Recovery    bool   `json:"rec,omitempty"`
	RefreshHash string `json:"rh"`
	CreatedAt   int64  `json:"cat"`
	ExpiresAt   int64  `json:"eat"`
}

const schemaVersion = 1

var errCorruptRecord = errors.New("corrupt session record")

func encodeSession(s *Session) ([]byte, error) {
	rec := recordV1{
		V:           schemaVersion,
		SessionID:   s.SessionID,
		UserID:      s.UserID,
		Email:       s.Email,
		Recovery:    s.Recovery,
		RefreshHash: base64.RawStdEncoding.EncodeToString(s.RefreshHash[:]),
		CreatedAt:   s.CreatedAt,
		ExpiresAt:   s.ExpiresAt,
	}
	return json.Marshal(rec)
}

func decodeSession(data []byte) (*Session, error) {
	var rec recordV1
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errCorruptRecord
	}
	if rec.V != schemaVersion || rec.SessionID == "" || rec.UserID == "" {
		return nil, errCorruptRecord
	}

	hash, err := base64.RawStdEncoding.DecodeString(rec.RefreshHash)
	if err != nil || len(hash) != 32 {
		return nil, errCorruptRecord
	}

	s := &Session{
		SessionID: rec.SessionID,
		UserID:    rec.UserID,
		Email:     rec.Email,
		Recovery:  rec.Recovery,
		CreatedAt: rec.CreatedAt,
		ExpiresAt: rec.ExpiresAt,
	}
	copy(s.RefreshHash[:], hash)
	return s, nil
}
