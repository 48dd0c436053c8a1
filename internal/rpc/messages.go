package rpc

// SessionKey is the metadata key carrying the session token in both
// directions: requests send the current token, responses return its successor.
const SessionKey = "session"

type Empty struct{}

type GenerateResponse struct {
	Codename string `json:"codename"`
}

type LoginRequest struct {
	Codename string `json:"codename"`
}

type LogoutResponse struct {
	Message string `json:"message"`
}

type LookupResponse struct {
	JournalistDesignation string `json:"journalist_designation"`
	HasReplies            bool   `json:"has_replies"`
	HasKey                bool   `json:"has_key"`
	Submissions           int64  `json:"submissions"`
}

// SubmitChunk is one frame of a submission upload. Message and Filename are
// read from the first frame only; Data accumulates across frames.
type SubmitChunk struct {
	Message  string `json:"message,omitempty"`
	Filename string `json:"filename,omitempty"`
	Data     []byte `json:"data,omitempty"`
}

type SubmitResponse struct {
	OK         bool     `json:"ok"`
	IsFirst    bool     `json:"is_first"`
	KeyPending bool     `json:"key_pending"`
	Artifacts  []string `json:"artifacts"`
}

type DeleteAllResponse struct {
	Deleted int `json:"deleted"`
}

type MetadataResponse struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

type JournalistKeyResponse struct {
	PublicKey []byte `json:"public_key"`
}
