package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/harulog/haru/internal/haru/genai"
	"github.com/harulog/haru/internal/haru/prompts"
	"github.com/harulog/haru/internal/haru/record"
	"github.com/harulog/haru/internal/haru/store"
)

type fakeImage struct {
	data []byte
	mime string
	err  error

	lastPrompt string
}

func (f *fakeImage) GenerateImage(_ context.Context, prompt string) ([]byte, string, error) {
	f.lastPrompt = prompt
	if f.err != nil {
		return nil, "", f.err
	}
	return f.data, f.mime, nil
}

type fakeMusic struct {
	samples []int16
	rate    int
	err     error

	lastPrompt string
}

func (f *fakeMusic) GenerateMusic(_ context.Context, prompt string) ([]int16, int, error) {
	f.lastPrompt = prompt
	if f.err != nil {
		return nil, 0, f.err
	}
	return f.samples, f.rate, nil
}

func newTestGenerator(t *testing.T, image genai.ImageProvider, music genai.MusicProvider) (*Generator, *store.Tiered) {
	t.Helper()
	local, err := store.NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	st := store.NewTiered(local, nil)
	pack, err := prompts.Default()
	if err != nil {
		t.Fatal(err)
	}
	factory := func() genai.MusicProvider { return music }
	if music == nil {
		factory = nil
	}
	gen, err := New(st, image, factory, pack, filepath.Join(t.TempDir(), "images"), filepath.Join(t.TempDir(), "music"))
	if err != nil {
		t.Fatal(err)
	}
	return gen, st
}

func summarised(t *testing.T, st *store.Tiered, owner string) *record.Record {
	t.Helper()
	rec := record.New(record.NewID(time.Now()), owner, time.Now())
	rec.SetSummary("오늘은 좋은 하루였다.", []string{"기쁨", "평온"}, "a sunlit park bench", "")
	if err := st.Save(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
	return rec
}

func TestAttachImageAppendsAndSelects(t *testing.T) {
	img := &fakeImage{data: []byte("png-bytes"), mime: "image/png"}
	gen, st := newTestGenerator(t, img, nil)
	rec := summarised(t, st, "user-1")

	got, path, err := gen.AttachImage(context.Background(), "user-1", rec.ID, "pixel")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.ImagePaths) != 1 || got.ImagePaths[0] != path {
		t.Fatalf("image paths = %v, want [%s]", got.ImagePaths, path)
	}
	if got.SelectedImageIndex != 0 {
		t.Fatalf("selected index = %d, want 0", got.SelectedImageIndex)
	}
	if !strings.Contains(img.lastPrompt, "a sunlit park bench") {
		t.Fatalf("prompt %q does not carry the record's image prompt", img.lastPrompt)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "png-bytes" {
		t.Fatalf("saved bytes = %q", data)
	}

	// Mutation must be persisted, not just returned.
	stored, err := st.Get(context.Background(), "user-1", rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored.ImagePaths) != 1 {
		t.Fatalf("persisted image paths = %v", stored.ImagePaths)
	}
}

func TestAttachImageSecondBecomesSelected(t *testing.T) {
	img := &fakeImage{data: []byte("x"), mime: "image/jpeg"}
	gen, st := newTestGenerator(t, img, nil)
	rec := summarised(t, st, "user-1")

	if _, _, err := gen.AttachImage(context.Background(), "user-1", rec.ID, ""); err != nil {
		t.Fatal(err)
	}
	got, path, err := gen.AttachImage(context.Background(), "user-1", rec.ID, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.ImagePaths) != 2 {
		t.Fatalf("image paths = %v, want 2 entries", got.ImagePaths)
	}
	if got.SelectedImageIndex != 1 {
		t.Fatalf("selected index = %d, want 1", got.SelectedImageIndex)
	}
	if !strings.HasSuffix(path, ".jpg") {
		t.Fatalf("jpeg payload saved as %s", path)
	}
}

func TestAttachImageRequiresPrompt(t *testing.T) {
	gen, st := newTestGenerator(t, &fakeImage{data: []byte("x"), mime: "image/png"}, nil)
	rec := record.New(record.NewID(time.Now()), "user-1", time.Now())
	if err := st.Save(context.Background(), rec); err != nil {
		t.Fatal(err)
	}

	if _, _, err := gen.AttachImage(context.Background(), "user-1", rec.ID, ""); !errors.Is(err, ErrNoPrompt) {
		t.Fatalf("err = %v, want ErrNoPrompt", err)
	}
}

func TestAttachImageProviderFailureLeavesRecordUntouched(t *testing.T) {
	img := &fakeImage{err: genai.ErrUnavailable}
	gen, st := newTestGenerator(t, img, nil)
	rec := summarised(t, st, "user-1")

	if _, _, err := gen.AttachImage(context.Background(), "user-1", rec.ID, ""); !errors.Is(err, genai.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	stored, err := st.Get(context.Background(), "user-1", rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored.ImagePaths) != 0 {
		t.Fatalf("failed generation must not add images, got %v", stored.ImagePaths)
	}
}

func TestAttachImageUnknownSession(t *testing.T) {
	gen, _ := newTestGenerator(t, &fakeImage{data: []byte("x"), mime: "image/png"}, nil)
	if _, _, err := gen.AttachImage(context.Background(), "user-1", "diary_20260101_010101_abcdef", ""); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSelectImagePersists(t *testing.T) {
	img := &fakeImage{data: []byte("x"), mime: "image/png"}
	gen, st := newTestGenerator(t, img, nil)
	rec := summarised(t, st, "user-1")
	for i := 0; i < 3; i++ {
		if _, _, err := gen.AttachImage(context.Background(), "user-1", rec.ID, ""); err != nil {
			t.Fatal(err)
		}
	}

	got, err := gen.SelectImage(context.Background(), "user-1", rec.ID, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got.SelectedImageIndex != 1 {
		t.Fatalf("selected index = %d, want 1", got.SelectedImageIndex)
	}

	stored, _ := st.Get(context.Background(), "user-1", rec.ID)
	if stored.SelectedImageIndex != 1 {
		t.Fatalf("persisted index = %d, want 1", stored.SelectedImageIndex)
	}
}

func TestSelectImageOutOfRange(t *testing.T) {
	img := &fakeImage{data: []byte("x"), mime: "image/png"}
	gen, st := newTestGenerator(t, img, nil)
	rec := summarised(t, st, "user-1")
	if _, _, err := gen.AttachImage(context.Background(), "user-1", rec.ID, ""); err != nil {
		t.Fatal(err)
	}

	if _, err := gen.SelectImage(context.Background(), "user-1", rec.ID, 5); !errors.Is(err, record.ErrIndexOutOfRange) {
		t.Fatalf("err = %v, want ErrIndexOutOfRange", err)
	}
	stored, _ := st.Get(context.Background(), "user-1", rec.ID)
	if stored.SelectedImageIndex != 0 {
		t.Fatalf("rejected selection must not persist, index = %d", stored.SelectedImageIndex)
	}
}

func TestAttachBGMWritesWAVAndPersistsPath(t *testing.T) {
	music := &fakeMusic{samples: []int16{0, 1000, -1000, 32767}, rate: 32000}
	gen, st := newTestGenerator(t, &fakeImage{}, music)
	rec := summarised(t, st, "user-1")

	got, path, err := gen.AttachBGM(context.Background(), "user-1", rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.BGMPath != path {
		t.Fatalf("record bgm path = %q, want %q", got.BGMPath, path)
	}
	if !strings.Contains(filepath.Base(path), rec.ID+"_bgm_") || !strings.HasSuffix(path, ".wav") {
		t.Fatalf("unexpected bgm file name %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Fatalf("output is not a wav container: % x", data[:12])
	}
	if len(data) != 44+len(music.samples)*2 {
		t.Fatalf("wav size = %d, want %d", len(data), 44+len(music.samples)*2)
	}

	// The prompt comes from the mood table, not the default.
	if !strings.Contains(music.lastPrompt, "happy upbeat") {
		t.Fatalf("mood-tagged record used prompt %q", music.lastPrompt)
	}

	stored, _ := st.Get(context.Background(), "user-1", rec.ID)
	if stored.BGMPath != path {
		t.Fatalf("persisted bgm path = %q", stored.BGMPath)
	}
}

func TestAttachBGMRegenerationReplacesPath(t *testing.T) {
	music := &fakeMusic{samples: []int16{1}, rate: 16000}
	gen, st := newTestGenerator(t, &fakeImage{}, music)
	rec := summarised(t, st, "user-1")

	_, first, err := gen.AttachBGM(context.Background(), "user-1", rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(1100 * time.Millisecond) // distinct timestamp in the file name
	got, second, err := gen.AttachBGM(context.Background(), "user-1", rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Fatalf("regeneration produced the same path %s", first)
	}
	if got.BGMPath != second {
		t.Fatalf("record keeps %q, want the newest track %q", got.BGMPath, second)
	}
}

func TestAttachBGMDisabled(t *testing.T) {
	gen, st := newTestGenerator(t, &fakeImage{}, nil)
	rec := summarised(t, st, "user-1")

	if _, _, err := gen.AttachBGM(context.Background(), "user-1", rec.ID); !errors.Is(err, genai.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestMusicProviderInitialisedOnce(t *testing.T) {
	var calls atomic.Int32
	music := &fakeMusic{samples: []int16{1}, rate: 16000}
	local, err := store.NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	pack, err := prompts.Default()
	if err != nil {
		t.Fatal(err)
	}
	gen, err := New(store.NewTiered(local, nil), &fakeImage{}, func() genai.MusicProvider {
		calls.Add(1)
		return music
	}, pack, t.TempDir(), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			gen.Warm()
		}()
	}
	wg.Wait()
	if got := calls.Load(); got != 1 {
		t.Fatalf("factory ran %d times, want 1", got)
	}
}
