package models

// ConfigProperty is a single key/value pair read from a daemon's /conf page
type ConfigProperty struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ResolvedPathInfo holds the filesystem locations a JobHistory server is configured with.
// Directory fields are absolute (carry a scheme) once resolved; the intermediate
// done dir may be empty.
type ResolvedPathInfo struct {
	DefaultFS                    string `json:"defaultFS"`
	RemoteLogDir                 string `json:"remoteLogDir"`
	MapreduceDoneDir             string `json:"mapreduceDoneDir"`
	MapreduceIntermediateDoneDir string `json:"mapreduceIntermediateDoneDir"`
}
