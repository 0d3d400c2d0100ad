// Package packsync resolves which resource pack a player should have and keeps a proxy
// and its backends in agreement about who sends it.
//
// packsync is a plain library layer: the host server calls its entry points from its own
// join, world switch and quit hooks, and packsync calls back through small capability
// interfaces (Host, PackTransport, Channel, Authenticator, Messenger).
//
// # Quick Start
//
// Load the configuration and build a manager:
//
//	cfg, err := config.Load("config.yml")
//	if err != nil {
//	    return err
//	}
//	cat, warnings := cfg.Catalog()
//	for _, w := range warnings {
//	    log.Warn("config", "error", w)
//	}
//
//	mngr, err := packsync.NewBuilder().
//	    Role(packsync.RoleStandalone).
//	    Host(host).
//	    Transport(transport).
//	    Catalog(cat).
//	    OnSave(func(c *packsync.Catalog) error {
//	        cfg.Apply(c)
//	        return cfg.Save()
//	    }).
//	    Init()
//
// Then route host events:
//
//	mngr.ApplyPack(id, worldName)   // join and world change
//	mngr.SwitchServer(id, server)   // proxy: backend switch
//	mngr.HandleMessage(data)        // plugin message on packsync.ChannelName
//	mngr.Disconnect(id)             // quit
//
// # Resolution
//
// Highest precedence first:
//
//	override    a temporary UsePack choice, until it expires
//	stored      the player's stored pack (stored-pack-priority: override)
//	scope       the world or server assignment: permission entries, then its pack
//	global      the global assignment, evaluated the same way
//	stored      the player's stored pack (stored-pack-priority: fallback)
//	empty       the designated empty pack, for players that had one sent
//	none        the client is told to clear its pack
//
// # Sync
//
// On a proxy a backend that sends its own pack takes authority over the player until it
// sends clearPack or the player disconnects or switches servers. The wire format is
// described on EncodeMessage.
package packsync

// Version is the packsync version.
const Version = "1.0.0"
