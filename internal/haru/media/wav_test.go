package media

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestWriteWAVHeader(t *testing.T) {
	var buf bytes.Buffer
	samples := []int16{0, 1, -1, 32767, -32768}
	if err := writeWAV(&buf, samples, 32000); err != nil {
		t.Fatal(err)
	}

	data := buf.Bytes()
	if len(data) != 44+len(samples)*2 {
		t.Fatalf("total size = %d, want %d", len(data), 44+len(samples)*2)
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" || string(data[36:40]) != "data" {
		t.Fatalf("bad chunk markers: % x", data[:44])
	}
	if got := binary.LittleEndian.Uint16(data[20:22]); got != 1 {
		t.Fatalf("audio format = %d, want 1 (PCM)", got)
	}
	if got := binary.LittleEndian.Uint16(data[22:24]); got != 1 {
		t.Fatalf("channels = %d, want mono", got)
	}
	if got := binary.LittleEndian.Uint32(data[24:28]); got != 32000 {
		t.Fatalf("sample rate = %d, want 32000", got)
	}
	if got := binary.LittleEndian.Uint32(data[28:32]); got != 64000 {
		t.Fatalf("byte rate = %d, want 64000", got)
	}
	if got := binary.LittleEndian.Uint16(data[34:36]); got != 16 {
		t.Fatalf("bits per sample = %d, want 16", got)
	}
	if got := binary.LittleEndian.Uint32(data[40:44]); got != uint32(len(samples)*2) {
		t.Fatalf("data chunk size = %d, want %d", got, len(samples)*2)
	}
}

func TestWriteWAVSampleEncoding(t *testing.T) {
	var buf bytes.Buffer
	if err := writeWAV(&buf, []int16{1, -2}, 16000); err != nil {
		t.Fatal(err)
	}
	body := buf.Bytes()[44:]
	want := []byte{0x01, 0x00, 0xFE, 0xFF}
	if !bytes.Equal(body, want) {
		t.Fatalf("encoded samples = % x, want % x", body, want)
	}
}

func TestWriteWAVRejectsBadRate(t *testing.T) {
	var buf bytes.Buffer
	if err := writeWAV(&buf, []int16{1}, 0); err == nil {
		t.Fatal("zero sample rate accepted")
	}
}
