package models

type FileMetas map[string]FileMeta

type FileTokens map[string]string

// PreUploadReq is the prepare-upload request body: the sender's identity
// plus the manifest of files it wants to push.
type PreUploadReq struct {
	Info  *DeviceInfo `json:"info"`
	Files FileMetas   `json:"files"`
}

// PreUploadResp lists only the files the receiver agreed to take; a file id
// absent from Tokens was rejected and must not be uploaded.
type PreUploadResp struct {
	SessionId string     `json:"sessionId"`
	Tokens    FileTokens `json:"files"`
}
