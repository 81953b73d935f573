package metrics

import "strings"

// Prefix namespaces every metric exported by the worker.
const Prefix = "moose"

// MetricName prefixes name with the worker namespace unless already present.
func MetricName(name string) string {
	if strings.HasPrefix(name, Prefix+"_") {
		return name
	}
	return Prefix + "_" + name
}

// MetricNameWithSubsystem builds <prefix>_<subsystem>_<name>.
func MetricNameWithSubsystem(subsystem, name string) string {
	if subsystem == "" {
		return MetricName(name)
	}
	return MetricName(subsystem + "_" + name)
}
