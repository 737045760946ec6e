package executor

import "strings"

// Kind identifies a firewall operation.
type Kind string

const (
	KindFlush        Kind = "flush"
	KindDeleteChains Kind = "delete-chains"
	KindPolicy       Kind = "policy"
	KindAcceptFrom   Kind = "accept-from"
	KindAcceptTo     Kind = "accept-to"
)

// Chains and targets used by the orchestrator.
const (
	ChainInput   = "INPUT"
	ChainForward = "FORWARD"
	ChainOutput  = "OUTPUT"

	TargetAccept = "ACCEPT"
	TargetDrop   = "DROP"
)

// Command is one invocation of the packet filter.
type Command struct {
	Kind   Kind
	Chain  string
	Target string
	IP     string
}

// Flush removes every rule from the filter table.
func Flush() Command {
	return Command{Kind: KindFlush}
}

// DeleteChains removes user-defined chains.
func DeleteChains() Command {
	return Command{Kind: KindDeleteChains}
}

// SetPolicy sets the default target of a built-in chain.
func SetPolicy(chain, target string) Command {
	return Command{Kind: KindPolicy, Chain: chain, Target: target}
}

// AcceptFrom appends an INPUT rule accepting packets with source ip.
func AcceptFrom(ip string) Command {
	return Command{Kind: KindAcceptFrom, Chain: ChainInput, Target: TargetAccept, IP: ip}
}

// AcceptTo appends an OUTPUT rule accepting packets with destination ip.
func AcceptTo(ip string) Command {
	return Command{Kind: KindAcceptTo, Chain: ChainOutput, Target: TargetAccept, IP: ip}
}

// RuleSpec returns the match part of an append rule, without the chain.
func (c Command) RuleSpec() []string {
	switch c.Kind {
	case KindAcceptFrom:
		return []string{"-s", c.IP, "-j", c.Target}
	case KindAcceptTo:
		return []string{"-d", c.IP, "-j", c.Target}
	}
	return nil
}

// Args renders the iptables argument vector.
func (c Command) Args() []string {
	switch c.Kind {
	case KindFlush:
		return []string{"-F"}
	case KindDeleteChains:
		return []string{"-X"}
	case KindPolicy:
		return []string{"-P", c.Chain, c.Target}
	case KindAcceptFrom, KindAcceptTo:
		return append([]string{"-A", c.Chain}, c.RuleSpec()...)
	}
	return nil
}

func (c Command) String() string {
	return strings.Join(c.Args(), " ")
}
