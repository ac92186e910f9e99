package session

import "github.com/zeusync/xrplace/internal/core/spatial"

// AssetHandle identifies the loaded object inside the Scene Host.
type AssetHandle string

// Host is the Scene Host: it owns the camera, the render loop and the loaded
// object. Every method is called from the session's thread and must not
// block; LoadAsset completes later by invoking exactly one of its callbacks,
// also on the session's thread.
type Host interface {
	CameraPose() spatial.CameraPose
	// LatestSurfaceHitPose is only consulted in surface hit-test mode.
	LatestSurfaceHitPose() (spatial.Pose, bool)
	LoadAsset(path string, onSuccess func(AssetHandle), onFailure func(reason error))
	SetObjectTransform(handle AssetHandle, t spatial.Transform)
}
