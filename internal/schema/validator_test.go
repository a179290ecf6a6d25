package schema

import (
	"errors"
	"reflect"
	"testing"

	"speech-pii-redaction-service/internal/models"
)

func TestTranscribeRequest(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		keys     []string
		lang     string
		errorMsg string
	}{
		{name: "single key", body: `{"s3ObjectKeys":["a.wav"]}`, keys: []string{"a.wav"}},
		{name: "keys and language", body: `{"s3ObjectKeys":["a.wav","dir/b.mp3"],"languageCode":"en-GB"}`, keys: []string{"a.wav", "dir/b.mp3"}, lang: "en-GB"},
		{name: "null language", body: `{"s3ObjectKeys":["a.wav"],"languageCode":null}`, keys: []string{"a.wav"}},
		{name: "empty body", body: "  ", errorMsg: MsgNoBody},
		{name: "missing keys", body: `{"languageCode":"en-US"}`, errorMsg: MsgMissingKeys},
		{name: "null keys", body: `{"s3ObjectKeys":null}`, errorMsg: MsgMissingKeys},
		{name: "keys not array", body: `{"s3ObjectKeys":"a.wav"}`, errorMsg: MsgKeysNotArray},
		{name: "empty array", body: `{"s3ObjectKeys":[]}`, errorMsg: MsgKeysEmpty},
		{name: "non-string key", body: `{"s3ObjectKeys":["a.wav", 42]}`, errorMsg: MsgKeyNotString},
		{name: "blank key", body: `{"s3ObjectKeys":[""]}`, errorMsg: MsgKeyNotString},
		{name: "language not string", body: `{"s3ObjectKeys":["a.wav"],"languageCode":7}`, errorMsg: MsgLanguageType},
	}

	v := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := v.TranscribeRequest([]byte(tt.body))

			if tt.errorMsg != "" {
				if err == nil {
					t.Fatalf("expected error %q, got request %+v", tt.errorMsg, req)
				}
				if err.Error() != tt.errorMsg {
					t.Errorf("expected message %q, got %q", tt.errorMsg, err.Error())
				}
				if !errors.Is(err, models.ErrValidation) {
					t.Errorf("expected ErrValidation, got %v", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(req.S3ObjectKeys, tt.keys) {
				t.Errorf("expected keys %v, got %v", tt.keys, req.S3ObjectKeys)
			}
			if req.LanguageCode != tt.lang {
				t.Errorf("expected language %q, got %q", tt.lang, req.LanguageCode)
			}
		})
	}
}

func TestTranscribeRequest_NotAnObject(t *testing.T) {
	_, err := New().TranscribeRequest([]byte(`["a.wav"]`))
	if !errors.Is(err, models.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}
