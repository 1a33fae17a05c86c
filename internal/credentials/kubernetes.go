//go:build !js || !wasm

package credentials

import (
	"context"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// KubernetesStore reads secrets from the data keys of a single Kubernetes
// Secret. The Secret is fetched on every lookup.
type KubernetesStore struct {
	client     kubernetes.Interface
	namespace  string
	secretName string
}

func NewKubernetesStore(client kubernetes.Interface, namespace, secretName string) *KubernetesStore {
	return &KubernetesStore{
		client:     client,
		namespace:  namespace,
		secretName: secretName,
	}
}

// NewKubernetesClient builds a clientset from kubeconfig, or from the
// in-cluster service account when kubeconfig is empty.
func NewKubernetesClient(kubeconfig string) (kubernetes.Interface, error) {
	var (
		cfg *rest.Config
		err error
	)
	if kubeconfig == "" {
		cfg, err = rest.InClusterConfig()
	} else {
		cfg, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load kubernetes config: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}
	return clientset, nil
}

func (k *KubernetesStore) GetSecret(ctx context.Context, name string) (string, error) {
	secret, err := k.client.CoreV1().Secrets(k.namespace).Get(ctx, k.secretName, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return "", fmt.Errorf("secret %s/%s: %w", k.namespace, k.secretName, notFound(name))
	}
	if err != nil {
		return "", fmt.Errorf("failed to get secret %s/%s: %w", k.namespace, k.secretName, err)
	}

	if v, ok := secret.Data[name]; ok && len(v) > 0 {
		return string(v), nil
	}
	return "", notFound(name)
}
