package consul

import (
	"fmt"
	"net"
	"strconv"

	consulapi "github.com/hashicorp/consul/api"
)

// Registration identifies this instance in the catalog.
type Registration struct {
	ID      string
	Name    string
	Address string
	Port    int
}

func NewClient(addr string) (*consulapi.Client, error) {
	cfg := consulapi.DefaultConfig()
	cfg.Address = addr
	client, err := consulapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create consul client: %w", err)
	}
	return client, nil
}

// RegisterService registers the instance with an HTTP check against /ping.
func RegisterService(client *consulapi.Client, reg Registration) error {
	check := &consulapi.AgentServiceCheck{
		HTTP:                           fmt.Sprintf("http://%s/ping", net.JoinHostPort(reg.Address, strconv.Itoa(reg.Port))),
		Interval:                       "10s",
		Timeout:                        "2s",
		DeregisterCriticalServiceAfter: "1m",
	}
	err := client.Agent().ServiceRegister(&consulapi.AgentServiceRegistration{
		ID:      reg.ID,
		Name:    reg.Name,
		Address: reg.Address,
		Port:    reg.Port,
		Tags:    []string{"http"},
		Check:   check,
	})
	if err != nil {
		return fmt.Errorf("register %s with consul: %w", reg.ID, err)
	}
	return nil
}

func DeregisterService(client *consulapi.Client, id string) error {
	if err := client.Agent().ServiceDeregister(id); err != nil {
		return fmt.Errorf("deregister %s from consul: %w", id, err)
	}
	return nil
}

// SplitHostPort resolves a listen address such as ":8080" into the host and
// port advertised to consul. An empty host falls back to advertiseHost.
func SplitHostPort(listenAddr, advertiseHost string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return "", 0, fmt.Errorf("parse listen address %q: %w", listenAddr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("parse port %q: %w", portStr, err)
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = advertiseHost
	}
	return host, port, nil
}
