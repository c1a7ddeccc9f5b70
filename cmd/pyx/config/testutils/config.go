package testutils

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/pyx-ai/pyx-cli/cmd/pyx/config"
)

// SampleCategories returns a taxonomy for tests.
//
//	7 vision (computer-vision)
//	├ 42 image classification (image-classification)
//	└ 43 object detection (object-detection)
//	8 audio (audio)
//	└ 81 speech recognition (speech-recognition)
func SampleCategories() config.Categories {
	return config.Categories{
		{ID: 7, Name: "vision", URL: "computer-vision"},
		{ID: 42, Name: "image classification", URL: "image-classification", ParentID: ChildOf(7)},
		{ID: 43, Name: "object detection", URL: "object-detection", ParentID: ChildOf(7)},
		{ID: 8, Name: "audio", URL: "audio"},
		{ID: 81, Name: "speech recognition", URL: "speech-recognition", ParentID: ChildOf(8)},
	}
}

// TempConfig writes conf into a file in a temporary directory for the test,
// and returns its path.
//
// The file is removed after the test automatically.
func TempConfig(t *testing.T, conf *config.Config) string {
	t.Helper()

	p := filepath.Join(t.TempDir(), ".pyx", "pyx.json")
	if err := os.MkdirAll(filepath.Dir(p), os.FileMode(0700)); err != nil {
		t.Fatal(err)
	}
	buf, err := json.MarshalIndent(conf, "", "    ")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, buf, os.FileMode(0600)); err != nil {
		t.Fatal(err)
	}
	return p
}

// ChildOf returns a ParentID pointing to the category parent.
func ChildOf(parent int) *int {
	return &parent
}
