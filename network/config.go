package network

import (
	"fmt"
	"net"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Configuration is where a listener binds and how it is advertised to peers.
type Configuration struct {
	Name              string
	AdvertisedAddress string
	AdvertisedPort    int
	BindAddress       string
	BindPort          int
}

func randomFreePort(host string) (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", fmt.Sprintf("%s:0", host))
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

func localPrivateHost() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "127.0.0.1"
	}
	for _, v := range ifaces {
		if v.Flags&net.FlagLoopback == net.FlagLoopback || v.Flags&net.FlagUp != net.FlagUp {
			continue
		}
		if len(v.HardwareAddr.String()) == 0 {
			continue
		}
		addresses, _ := v.Addrs()
		for _, ip := range addresses {
			if ipnet, ok := ip.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
				return ipnet.IP.String()
			}
		}
	}
	return "127.0.0.1"
}

func advertisedAddressFlagName(name string) string {
	return fmt.Sprintf("%s-advertised-address", name)
}
func advertisedPortFlagName(name string) string {
	return fmt.Sprintf("%s-advertised-port", name)
}
func bindAddressFlagName(name string) string {
	return fmt.Sprintf("%s-bind-address", name)
}
func bindPortFlagName(name string) string {
	return fmt.Sprintf("%s-bind-port", name)
}

func (c Configuration) Describe() string {
	return fmt.Sprintf("service %s is running on %s:%d and exposed on %s:%d",
		c.Name,
		c.BindAddress, c.BindPort,
		c.AdvertisedAddress, c.AdvertisedPort,
	)
}

// ConfigurationFromFlags reads the flags registered by RegisterFlagsForService.
// A zero bind port picks a free one; advertised values default to bound ones.
func ConfigurationFromFlags(v *viper.Viper, name string) (Configuration, error) {
	config := Configuration{
		Name:              name,
		AdvertisedAddress: v.GetString(advertisedAddressFlagName(name)),
		AdvertisedPort:    v.GetInt(advertisedPortFlagName(name)),
		BindAddress:       v.GetString(bindAddressFlagName(name)),
		BindPort:          v.GetInt(bindPortFlagName(name)),
	}
	if len(config.BindAddress) == 0 {
		config.BindAddress = localPrivateHost()
	}
	if len(config.AdvertisedAddress) == 0 {
		config.AdvertisedAddress = config.BindAddress
	}
	if config.BindPort == 0 {
		randomPort, err := randomFreePort(config.BindAddress)
		if err != nil {
			return config, errors.Wrapf(err, "failed to find a free port for service %s", name)
		}
		config.BindPort = randomPort
	}
	if config.AdvertisedPort == 0 {
		config.AdvertisedPort = config.BindPort
	}
	if net.ParseIP(config.BindAddress) == nil {
		return config, errors.Errorf("invalid bind address specified for service %s: %q", name, config.BindAddress)
	}
	if net.ParseIP(config.AdvertisedAddress) == nil {
		return config, errors.Errorf("invalid advertised address specified for service %s: %q", name, config.AdvertisedAddress)
	}
	if config.AdvertisedPort < 1024 || config.AdvertisedPort > 65535 {
		return config, errors.Errorf("invalid advertised port specified for service %s: %d", name, config.AdvertisedPort)
	}
	if config.BindPort < 1024 || config.BindPort > 65535 {
		return config, errors.Errorf("invalid bind port specified for service %s: %d", name, config.BindPort)
	}
	return config, nil
}

func RegisterFlagsForService(flags *pflag.FlagSet, config *viper.Viper, name string, defaultPort int) {
	long := bindPortFlagName(name)
	longAddr := bindAddressFlagName(name)
	advLong := advertisedPortFlagName(name)
	advLongAddr := advertisedAddressFlagName(name)

	flags.IntP(long, "", defaultPort, fmt.Sprintf("Start %s listener on this port", name))
	config.BindPFlag(long, flags.Lookup(long))

	flags.StringP(longAddr, "", "", fmt.Sprintf("Start %s listener on this address (defaults to the first private address)", name))
	config.BindPFlag(longAddr, flags.Lookup(longAddr))

	flags.StringP(advLongAddr, "", "", fmt.Sprintf("Advertise %s listener on this address", name))
	config.BindPFlag(advLongAddr, flags.Lookup(advLongAddr))

	flags.IntP(advLong, "", 0, fmt.Sprintf("Advertise %s listener on this port", name))
	config.BindPFlag(advLong, flags.Lookup(advLong))
}
