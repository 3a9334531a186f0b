// Package video renders talking-head videos from a face image and speech
// audio using a SadTalker Gradio space. It is independent of viseme timing.
package video

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrQueueFull = errors.New("queue is full, please try again later")
	ErrTimeout   = errors.New("timed out waiting for video generation")
	ErrNoVideo   = errors.New("could not parse video from response")
)

var (
	preprocessModes = map[string]bool{"crop": true, "resize": true, "full": true, "extcrop": true, "extfull": true}
	faceRenderers   = map[string]bool{"facevid2vid": true, "pirender": true}
	refVideoTypes   = map[string]bool{"pose": true, "blink": true, "pose+blink": true, "all": true}
)

// StyleOptions are the generation knobs exposed by the space.
type StyleOptions struct {
	Preprocess       string  `json:"preprocess"`
	StillMode        bool    `json:"still_mode"`
	UseEnhancer      bool    `json:"use_enhancer"`
	BatchSize        int     `json:"batch_size"`
	Resolution       int     `json:"resolution"`
	PoseStyle        int     `json:"pose_style"`
	FaceRender       string  `json:"facerender"`
	ExpressionScale  float64 `json:"expression_scale"`
	UseRefVideo      bool    `json:"use_ref_video"`
	RefVideo         string  `json:"ref_video,omitempty"`
	RefVideoType     string  `json:"ref_video_type"`
	UseIdleAnimation bool    `json:"use_idle_animation"`
	IdleLength       int     `json:"idle_length"`
	UseEyeBlink      bool    `json:"use_eye_blink"`
}

func DefaultStyleOptions() StyleOptions {
	return StyleOptions{
		Preprocess:      "crop",
		BatchSize:       1,
		Resolution:      256,
		FaceRender:      "facevid2vid",
		ExpressionScale: 1.0,
		RefVideoType:    "pose",
		IdleLength:      5,
		UseEyeBlink:     true,
	}
}

// Validate checks option ranges accepted by the space.
func (o StyleOptions) Validate() error {
	var problems []string
	if !preprocessModes[o.Preprocess] {
		problems = append(problems, fmt.Sprintf("preprocess %q", o.Preprocess))
	}
	if !faceRenderers[o.FaceRender] {
		problems = append(problems, fmt.Sprintf("facerender %q", o.FaceRender))
	}
	if !refVideoTypes[o.RefVideoType] {
		problems = append(problems, fmt.Sprintf("ref_video_type %q", o.RefVideoType))
	}
	if o.Resolution != 256 && o.Resolution != 512 {
		problems = append(problems, fmt.Sprintf("resolution %d", o.Resolution))
	}
	if o.BatchSize < 1 || o.BatchSize > 10 {
		problems = append(problems, fmt.Sprintf("batch_size %d", o.BatchSize))
	}
	if o.PoseStyle < 0 || o.PoseStyle > 45 {
		problems = append(problems, fmt.Sprintf("pose_style %d", o.PoseStyle))
	}
	if o.ExpressionScale < 0 || o.ExpressionScale > 3 {
		problems = append(problems, fmt.Sprintf("expression_scale %v", o.ExpressionScale))
	}
	if o.IdleLength < 0 {
		problems = append(problems, fmt.Sprintf("idle_length %d", o.IdleLength))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid style options: %s", strings.Join(problems, ", "))
	}
	return nil
}

// positional returns the option values in the order the space expects,
// after the image and audio inputs.
func (o StyleOptions) positional() []any {
	var ref any
	if o.RefVideo != "" {
		ref = o.RefVideo
	}
	return []any{
		o.Preprocess,
		o.StillMode,
		o.UseEnhancer,
		o.BatchSize,
		o.Resolution,
		o.PoseStyle,
		o.FaceRender,
		o.ExpressionScale,
		o.UseRefVideo,
		ref,
		o.RefVideoType,
		o.UseIdleAnimation,
		o.IdleLength,
		o.UseEyeBlink,
	}
}

// Result holds either a URL to the rendered video or inline base64 data.
type Result struct {
	VideoURL    string `json:"video_url,omitempty"`
	VideoBase64 string `json:"video_base64,omitempty"`
}
