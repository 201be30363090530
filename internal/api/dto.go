package api

type OpenRequest struct {
	Path string `json:"path"`
}

type ContainerSummary struct {
	ID        string `json:"id"`
	Object    string `json:"object"`
	Kind      string `json:"kind"`
	Path      string `json:"path"`
	OpenedAt  int64  `json:"opened_at"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	NumFrames int    `json:"num_frames"`
	Mapped    bool   `json:"mapped"`

	// SER only
	SeriesVersion uint16 `json:"series_version,omitempty"`
	TagType       string `json:"tag_type,omitempty"`
	OffsetWidth   string `json:"offset_width,omitempty"`

	// EMI only
	Domain       string `json:"domain,omitempty"`
	OriginalPath string `json:"original_path,omitempty"`
}

type ContainerList struct {
	Object string             `json:"object"`
	Data   []ContainerSummary `json:"data"`
}

type CloseResponse struct {
	ID     string `json:"id"`
	Object string `json:"object"`
	Closed bool   `json:"closed"`
}

type TimestampResponse struct {
	Index     int    `json:"index"`
	Timestamp int64  `json:"timestamp"`
	Time      string `json:"time"`
}

type ErrorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}
