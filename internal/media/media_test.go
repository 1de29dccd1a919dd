package media

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name    string
		out     string
		want    int
		wantErr bool
	}{
		{name: "format duration", out: `{"format":{"duration":"12.6"}}`, want: 13},
		{name: "rounds down", out: `{"format":{"duration":"12.4"}}`, want: 12},
		{name: "stream fallback", out: `{"streams":[{"duration":"3.0"},{"duration":"9.7"}],"format":{}}`, want: 10},
		{name: "missing", out: `{"format":{}}`, wantErr: true},
		{name: "garbage", out: `not json`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDuration([]byte(tt.out))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFFprobeInvocation(t *testing.T) {
	p := NewFFprobe(nil)
	var gotName string
	var gotArgs []string
	p.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		gotName, gotArgs = name, args
		return []byte(`{"format":{"duration":"61.5"}}`), nil
	}

	seconds, err := p.DurationSeconds(context.Background(), "/data/video.mp4")
	require.NoError(t, err)
	assert.Equal(t, 62, seconds)
	assert.Equal(t, "ffprobe", gotName)
	assert.Equal(t, []string{"--", "/data/video.mp4"}, gotArgs[len(gotArgs)-2:])

	p.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, errors.New("exit status 1")
	}
	_, err = p.DurationSeconds(context.Background(), "/data/video.mp4")
	assert.Error(t, err)

	_, err = p.DurationSeconds(context.Background(), " ")
	assert.Error(t, err)
}

func TestFFmpegArgs(t *testing.T) {
	f := NewFFmpeg(nil)
	assert.Equal(t, []string{
		"-v", "error", "-ss", "2", "-i", "in.mp4", "-frames:v", "1",
		"-vf", "scale=320:180", "-f", "image2", "-c:v", "mjpeg", "pipe:1",
	}, f.args("in.mp4"))

	f.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte{0xff, 0xd8}, nil
	}
	frame, err := f.ExtractFrame(context.Background(), "in.mp4")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8}, frame)

	f.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, nil
	}
	_, err = f.ExtractFrame(context.Background(), "in.mp4")
	assert.Error(t, err)
}
