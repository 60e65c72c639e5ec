package onboarding

// DocumentationAsset is the uploaded documentation file driving the
// generation stages. RemoteID is empty until the upload stage succeeds;
// every downstream stage requires it.
type DocumentationAsset struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType,omitempty"`
	Size        int64  `json:"size"`
	Content     []byte `json:"-"`
	RemoteID    string `json:"remoteId,omitempty"`
}

// Empty returns true when no usable file is attached. An empty asset makes
// the pipeline unstartable.
func (a DocumentationAsset) Empty() bool {
	return a.Filename == "" || len(a.Content) == 0
}
