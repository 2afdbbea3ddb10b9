package cache

// Keyer derives cache keys from the inputs of a cached computation.
type Keyer interface {
	// ResultKey addresses the routes computed for a scene.
	ResultKey(sceneHash string, opts ResultKeyOpts) string

	// GraphKey addresses a rendered routing graph.
	GraphKey(sceneHash string, opts GraphKeyOpts) string
}

// ResultKeyOpts are the inputs besides the scene that a routing result
// depends on.
type ResultKeyOpts struct {
	Version string // build version
	Params  any    // effective router parameters
}

// GraphKeyOpts are the inputs besides the scene that a graph rendering
// depends on.
type GraphKeyOpts struct {
	Version    string
	Params     any
	Discipline string
	Format     string
}

// DefaultKeyer hashes every input into the key.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

func (DefaultKeyer) ResultKey(sceneHash string, opts ResultKeyOpts) string {
	return hashKey("result", sceneHash, opts.Version, opts.Params)
}

func (DefaultKeyer) GraphKey(sceneHash string, opts GraphKeyOpts) string {
	return hashKey("graph", sceneHash, opts.Version, opts.Params, opts.Discipline, opts.Format)
}

// ScopedKeyer prefixes the keys of another keyer, for example to keep the
// entries of different cache layouts apart in one directory.
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer wraps inner, or the default keyer when inner is nil.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

func (k *ScopedKeyer) ResultKey(sceneHash string, opts ResultKeyOpts) string {
	return k.prefix + k.inner.ResultKey(sceneHash, opts)
}

func (k *ScopedKeyer) GraphKey(sceneHash string, opts GraphKeyOpts) string {
	return k.prefix + k.inner.GraphKey(sceneHash, opts)
}
