// Package loader provides the feature loading system.
//
// Each feature implements the Feature interface: a name, an enabled switch and
// a Load hook mounting its routes. Features owning goroutines or caches also
// implement Closer and are shut down by CloseAll in reverse load order.
//
// # Usage
//
//	mgr := loader.NewManager()
//	mgr.Register(assets.NewFeature(svc, logg))
//	if err := mgr.LoadAll(app); err != nil {
//	    logg.Fatal("Failed to load features", zap.Error(err))
//	}
//	defer mgr.CloseAll()
package loader
