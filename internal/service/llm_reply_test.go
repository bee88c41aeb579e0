package service

import (
	"errors"
	"reflect"
	"testing"
)

func TestStripCodeFence(t *testing.T) {
	cases := map[string]string{
		"```json\n[1,2]\n```":     "[1,2]",
		"```\n{\"a\":1}\n```":     `{"a":1}`,
		"```json[1]```":           "[1]",
		"  [1]  ":                 "[1]",
		"```JSON\n[1]\n```":       "[1]",
		"```json\n[\n  1\n]\n```": "[\n  1\n]",
	}
	for in, want := range cases {
		if got := StripCodeFence(in); got != want {
			t.Fatalf("StripCodeFence(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFencedReplyDecodesLikeBarePayload(t *testing.T) {
	payload := `[{"topic_name":"Loops","difficulty_score":4.5,"difficulty_class":"easy","summary":"s","sequence_number":1}]`

	var bare, fenced []map[string]interface{}
	if err := decodeJSONReply(payload, &bare); err != nil {
		t.Fatalf("bare decode: %v", err)
	}
	if err := decodeJSONReply("```json\n"+payload+"\n```", &fenced); err != nil {
		t.Fatalf("fenced decode: %v", err)
	}
	if !reflect.DeepEqual(bare, fenced) {
		t.Fatalf("fenced payload decoded differently: %v vs %v", bare, fenced)
	}
}

func TestDecodeJSONReplyMalformed(t *testing.T) {
	for _, raw := range []string{"", "Sure! Here are your topics.", `[{"a":1}] trailing`, `{"a":`} {
		var v interface{}
		err := decodeJSONReply(raw, &v)
		var malformed *MalformedReplyError
		if !errors.As(err, &malformed) {
			t.Fatalf("decode(%q) err = %v, want MalformedReplyError", raw, err)
		}
		if malformed.Raw != raw {
			t.Fatalf("raw text not carried: %q", malformed.Raw)
		}
	}
}
