package media

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"
)

type ffmpeg struct {
	ffmpegCmd  string
	ffprobeCmd string
}

// NewProber creates a Prober backed by the ffprobe and ffmpeg binaries on
// PATH.
func NewProber() Prober {
	return ffmpeg{
		ffmpegCmd:  "ffmpeg",
		ffprobeCmd: "ffprobe",
	}
}

// ListStreams probes the container and returns its subtitle streams.
func (ff ffmpeg) ListStreams(path string) ([]StreamDescriptor, error) {
	cmdPath, err := exec.LookPath(ff.ffprobeCmd)
	if err != nil {
		return nil, err
	}
	cmd := exec.Command(cmdPath, ff.probeArgs(path)...)

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to run ffprobe: %w", err)
	}

	var probeResult struct {
		Streams []struct {
			Index     int    `json:"index"`
			CodecType string `json:"codec_type"`
			CodecName string `json:"codec_name"`
			Tags      struct {
				Language string `json:"language"`
				Title    string `json:"title"`
			} `json:"tags"`
		} `json:"streams"`
	}

	if err := json.Unmarshal(output, &probeResult); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	streams := make([]StreamDescriptor, 0, len(probeResult.Streams))
	for _, stream := range probeResult.Streams {
		if stream.CodecType != "subtitle" {
			continue
		}
		desc := StreamDescriptor{
			Index:    stream.Index,
			Codec:    stream.CodecName,
			Language: stream.Tags.Language,
			Title:    stream.Tags.Title,
		}
		if desc.Language == "" {
			desc.Language = "und"
		}
		streams = append(streams, desc)
	}

	return streams, nil
}

// ExtractStream converts the given subtitle stream to a scratch SRT file and
// returns its path. The caller owns the file and removes it after use.
func (ff ffmpeg) ExtractStream(path string, streamIndex int) (string, error) {
	cmdPath, err := exec.LookPath(ff.ffmpegCmd)
	if err != nil {
		return "", err
	}

	output := filepath.Join(os.TempDir(), fmt.Sprintf("srtrans-%s.srt", uuid.NewString()))
	cmd := exec.Command(cmdPath, ff.extractArgs(path, streamIndex, output)...)

	if err := cmd.Run(); err != nil {
		os.Remove(output)
		return "", fmt.Errorf("failed to extract subtitle stream %d: %w", streamIndex, err)
	}

	return output, nil
}

func (ffmpeg) probeArgs(path string) []string {
	return []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-select_streams", "s",
		path,
	}
}

func (ffmpeg) extractArgs(path string, streamIndex int, targetPath string) []string {
	return []string{
		"-nostdin",
		"-v", "quiet",
		"-i", path,
		"-map", fmt.Sprintf("0:%d", streamIndex),
		"-c:s", "srt",
		"-f", "srt",
		targetPath,
	}
}
