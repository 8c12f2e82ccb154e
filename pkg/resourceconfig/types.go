// Package resourceconfig implements the Resource-Config Registry: CRUD
// storage for named rendering-launch recipes, plus the pure REST
// parameter-template substitution helper shared by every allocator
// backend.
package resourceconfig

// ResourceConfig describes how to launch a rendering binary for sessions
// that reference it by name.
type ResourceConfig struct {
	ID                            string `json:"id"`
	CommandLine                   string `json:"command_line"`
	EnvironmentVariables          string `json:"environment_variables"`
	Modules                       string `json:"modules"`
	ProcessRESTParametersFormat   string `json:"process_rest_parameters_format"`
	SchedulerRESTParametersFormat string `json:"scheduler_rest_parameters_format"`
	Project                       string `json:"project"`
	Queue                         string `json:"queue"`
	Exclusive                     bool   `json:"exclusive"`
	NbNodes                       int    `json:"nb_nodes"`
	NbCPUs                        int    `json:"nb_cpus"`
	NbGPUs                        int    `json:"nb_gpus"`
	Memory                        int    `json:"memory"`
	GracefulExit                  bool   `json:"graceful_exit"`
	WaitUntilRunning              bool   `json:"wait_until_running"`
}
