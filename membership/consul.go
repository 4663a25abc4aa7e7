package membership

import (
	"fmt"

	consul "github.com/hashicorp/consul/api"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ConsulSeeds returns the addresses of the registered instances of service,
// skipping critical ones and this node.
func ConsulSeeds(api *consul.Client, service string, selfAddress string, selfPort int, logger *zap.Logger) ([]string, error) {
	services, _, err := api.Health().Service(service, "", false, &consul.QueryOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to query consul")
	}
	peers := []string{}
	for _, service := range services {
		logger.Debug("discovered node",
			zap.String("node_address", service.Service.Address),
			zap.Int("node_port", service.Service.Port),
			zap.String("node_health", service.Checks.AggregatedStatus()))
		if service.Checks.AggregatedStatus() == consul.HealthCritical {
			continue
		}
		if service.Service.Address == selfAddress &&
			service.Service.Port == selfPort {
			continue
		}
		peers = append(peers, fmt.Sprintf("%s:%d", service.Service.Address, service.Service.Port))
	}
	return peers, nil
}
