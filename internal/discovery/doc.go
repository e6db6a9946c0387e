// Package discovery advertises the presence HTTP API over mDNS and finds
// other instances on the local network.
//
// The advertised host name is derived from the first tracked device so a
// tracker following "Ziggy" answers at myziggy.local. With no tracked
// devices the name is myairtag.
package discovery
