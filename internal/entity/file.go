package entity

// UploadFile is one document handed to the pipeline by the inbound surface:
// raw bytes plus the metadata the orchestrator validates before any network
// I/O happens.
type UploadFile struct {
	Filename    string
	ContentType string
	Size        int64
	Data        []byte
}
